package service

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/time/rate"

	"github.com/eventops/staffbot/internal/bot/metrics"
	"github.com/eventops/staffbot/internal/bot/platform"
	"github.com/eventops/staffbot/internal/bot/roster"
	"github.com/eventops/staffbot/internal/bot/store"
	"github.com/eventops/staffbot/pkg/slogx"
)

// RoleSync reconciles role membership on the chat platform against the
// directory. The diff step is pure; the apply step is best-effort per user
// and never rolls back.
type RoleSync struct {
	Store   store.Store
	Gateway platform.Gateway
	Metrics *metrics.Collector

	// Limiter paces grant/revoke calls against the platform's rate limits.
	// Nil means unpaced.
	Limiter *rate.Limiter
}

// SyncOptions selects the desired membership for one target role.
type SyncOptions struct {
	RoleID int64

	// Invert targets everyone NOT registered in the directory instead of
	// the registered users ("grant to everyone not yet onboarded").
	Invert bool

	// ScopeRoleID, when set, intersects the target set with the users
	// holding that role.
	ScopeRoleID *int64
}

// SyncResult summarizes one reconciliation run.
type SyncResult struct {
	Granted int
	Revoked int
	Failed  int
}

// Diff computes the minimal grant/revoke sets that move actual toward
// target. Pure and deterministic: both outputs are sorted ascending.
// Re-running on unchanged inputs yields two empty sets.
func Diff(target, actual []int64) (grant, revoke []int64) {
	targetSet := make(map[int64]struct{}, len(target))
	for _, id := range target {
		targetSet[id] = struct{}{}
	}
	actualSet := make(map[int64]struct{}, len(actual))
	for _, id := range actual {
		actualSet[id] = struct{}{}
	}

	for id := range targetSet {
		if _, ok := actualSet[id]; !ok {
			grant = append(grant, id)
		}
	}
	for id := range actualSet {
		if _, ok := targetSet[id]; !ok {
			revoke = append(revoke, id)
		}
	}

	sort.Slice(grant, func(i, j int) bool { return grant[i] < grant[j] })
	sort.Slice(revoke, func(i, j int) bool { return revoke[i] < revoke[j] })
	return grant, revoke
}

// Sync computes the desired membership for the target role and applies the
// grant/revoke diff. Grants run before revokes so a user present in both
// sets (stale read) never transiently loses the role. Per-user failures are
// logged and skipped; partial application is accepted.
func (s *RoleSync) Sync(ctx context.Context, opts SyncOptions) (SyncResult, error) {
	log := slogx.FromContext(ctx)

	// 1. Desired base: every registered chat user.
	target, err := s.Store.Participants().ListDiscordUserIDs(ctx)
	if err != nil {
		log.Error("failed to list registered users", slog.Any("error", err))
		return SyncResult{}, err
	}

	// 2. Inverted runs target the complement within the guild.
	if opts.Invert {
		guild, err := s.Gateway.GuildMemberIDs(ctx)
		if err != nil {
			log.Error("failed to list guild members", slog.Any("error", err))
			return SyncResult{}, err
		}
		target = subtract(guild, target)
	}

	// 3. Optional scoping role intersection.
	if opts.ScopeRoleID != nil {
		scope, err := s.Gateway.RoleMemberIDs(ctx, *opts.ScopeRoleID)
		if err != nil {
			log.Error("failed to list scope role members",
				slog.Int64("role_id", *opts.ScopeRoleID),
				slog.Any("error", err),
			)
			return SyncResult{}, err
		}
		target = intersect(target, scope)
	}

	// 4. Live membership of the target role.
	actual, err := s.Gateway.RoleMemberIDs(ctx, opts.RoleID)
	if err != nil {
		log.Error("failed to list role members",
			slog.Int64("role_id", opts.RoleID),
			slog.Any("error", err),
		)
		return SyncResult{}, err
	}

	grant, revoke := Diff(target, actual)

	// 5. Apply. Grants first, then revokes.
	var result SyncResult
	for _, userID := range grant {
		if err := s.call(ctx, s.Gateway.GrantRole, userID, opts.RoleID); err != nil {
			log.Warn("role grant rejected",
				slog.Int64("user_id", userID),
				slog.Int64("role_id", opts.RoleID),
				slog.Any("error", err),
			)
			result.Failed++
			continue
		}
		s.Metrics.RecordRoleGranted()
		result.Granted++
	}
	for _, userID := range revoke {
		if err := s.call(ctx, s.Gateway.RevokeRole, userID, opts.RoleID); err != nil {
			log.Warn("role revoke rejected",
				slog.Int64("user_id", userID),
				slog.Int64("role_id", opts.RoleID),
				slog.Any("error", err),
			)
			result.Failed++
			continue
		}
		s.Metrics.RecordRoleRevoked()
		result.Revoked++
	}

	log.Info("role sync finished",
		slog.Int64("role_id", opts.RoleID),
		slog.Bool("invert", opts.Invert),
		slog.Int("granted", result.Granted),
		slog.Int("revoked", result.Revoked),
		slog.Int("failed", result.Failed),
	)
	return result, nil
}

// ApplyMatrix applies a role-audit matrix import: for every row present in
// the guild, a "1" cell grants the named role and anything else revokes it.
// Role names unknown to the guild are ignored, as is the platform's
// reserved everyone role.
func (s *RoleSync) ApplyMatrix(ctx context.Context, rows []roster.MatrixRow) (SyncResult, error) {
	log := slogx.FromContext(ctx)

	roles, err := s.Gateway.Roles(ctx)
	if err != nil {
		log.Error("failed to list guild roles", slog.Any("error", err))
		return SyncResult{}, err
	}
	roleByName := make(map[string]platform.Role, len(roles))
	for _, r := range roles {
		roleByName[r.Name] = r
	}

	guild, err := s.Gateway.GuildMemberIDs(ctx)
	if err != nil {
		log.Error("failed to list guild members", slog.Any("error", err))
		return SyncResult{}, err
	}
	inGuild := make(map[int64]struct{}, len(guild))
	for _, id := range guild {
		inGuild[id] = struct{}{}
	}

	var result SyncResult
	for _, row := range rows {
		if _, ok := inGuild[row.DiscordUserID]; !ok {
			continue
		}

		for name, assign := range row.Roles {
			if name == "@everyone" {
				continue
			}
			role, ok := roleByName[name]
			if !ok {
				continue
			}

			op := s.Gateway.RevokeRole
			if assign {
				op = s.Gateway.GrantRole
			}
			if err := s.call(ctx, op, row.DiscordUserID, role.ID); err != nil {
				log.Warn("role matrix call rejected",
					slog.Int64("user_id", row.DiscordUserID),
					slog.String("role", name),
					slog.Any("error", err),
				)
				result.Failed++
				continue
			}
			if assign {
				s.Metrics.RecordRoleGranted()
				result.Granted++
			} else {
				s.Metrics.RecordRoleRevoked()
				result.Revoked++
			}
		}
	}

	log.Info("role matrix applied",
		slog.Int("rows", len(rows)),
		slog.Int("granted", result.Granted),
		slog.Int("revoked", result.Revoked),
		slog.Int("failed", result.Failed),
	)
	return result, nil
}

func (s *RoleSync) call(ctx context.Context, op func(context.Context, int64, int64) error, userID, roleID int64) error {
	if s.Limiter != nil {
		if err := s.Limiter.Wait(ctx); err != nil {
			return err
		}
	}
	err := op(ctx, userID, roleID)
	if err != nil {
		s.Metrics.RecordRoleCallError()
	}
	return err
}

func subtract(a, b []int64) []int64 {
	drop := make(map[int64]struct{}, len(b))
	for _, id := range b {
		drop[id] = struct{}{}
	}
	var out []int64
	for _, id := range a {
		if _, ok := drop[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

func intersect(a, b []int64) []int64 {
	keep := make(map[int64]struct{}, len(b))
	for _, id := range b {
		keep[id] = struct{}{}
	}
	var out []int64
	for _, id := range a {
		if _, ok := keep[id]; ok {
			out = append(out, id)
		}
	}
	return out
}
