package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/eventops/staffbot/internal/bot/metrics"
	"github.com/eventops/staffbot/internal/bot/platform"
	"github.com/eventops/staffbot/internal/bot/store"
	"github.com/eventops/staffbot/pkg/slogx"
)

// DefaultNickTemplate is the nickname format applied when the admin command
// gives none.
const DefaultNickTemplate = "[{team}]{last_name} {first_name}_{group_short_name}"

// Nickname renders and applies formatted guild nicknames for registered
// participants.
type Nickname struct {
	Store   store.Store
	Gateway platform.Gateway
	Metrics *metrics.Collector

	// TeamRolePrefix marks the roles whose suffix names a participant's
	// team, e.g. a "Team " prefix turns the role "Team Alpha" into team
	// "Alpha".
	TeamRolePrefix string
}

// RenderNick substitutes the template placeholders {team}, {last_name},
// {first_name} and {group_short_name}.
func RenderNick(template, team, lastName, firstName, groupShortName string) string {
	r := strings.NewReplacer(
		"{team}", team,
		"{last_name}", lastName,
		"{first_name}", firstName,
		"{group_short_name}", groupShortName,
	)
	return r.Replace(template)
}

// ApplyResult summarizes one bulk nickname run.
type ApplyResult struct {
	Updated int
	Skipped int // participants not present in the guild
	Failed  int
}

// Apply sets the formatted nickname for every registered participant present
// in the guild. Per-user failures are logged and skipped.
func (s *Nickname) Apply(ctx context.Context, template string) (ApplyResult, error) {
	log := slogx.FromContext(ctx)

	if template == "" {
		template = DefaultNickTemplate
	}

	participants, err := s.Store.Participants().ListParticipants(ctx)
	if err != nil {
		log.Error("failed to list participants", slog.Any("error", err))
		return ApplyResult{}, err
	}

	groups, err := s.Store.Groups().ListAllGroups(ctx)
	if err != nil {
		log.Error("failed to list groups", slog.Any("error", err))
		return ApplyResult{}, err
	}
	shortNames := make(map[int64]string, len(groups))
	for _, g := range groups {
		shortNames[g.ID] = g.ShortName
	}

	var result ApplyResult
	for _, p := range participants {
		roleNames, err := s.Gateway.MemberRoleNames(ctx, p.DiscordUserID)
		if err != nil {
			// Not in the guild (or the lookup was refused); leave them be.
			result.Skipped++
			continue
		}

		team := "?"
		for _, name := range roleNames {
			if s.TeamRolePrefix != "" && strings.HasPrefix(name, s.TeamRolePrefix) {
				team = strings.TrimPrefix(name, s.TeamRolePrefix)
				break
			}
		}

		nick := RenderNick(template, team, p.LastName, p.FirstName, shortNames[p.GroupID])
		if err := s.Gateway.SetNickname(ctx, p.DiscordUserID, nick); err != nil {
			log.Warn("nickname update rejected",
				slog.Int64("user_id", p.DiscordUserID),
				slog.Any("error", err),
			)
			result.Failed++
			continue
		}
		s.Metrics.RecordNicknameUpdate()
		result.Updated++
	}

	log.Info("nicknames applied",
		slog.Int("updated", result.Updated),
		slog.Int("skipped", result.Skipped),
		slog.Int("failed", result.Failed),
	)
	return result, nil
}
