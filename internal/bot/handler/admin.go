package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/eventops/staffbot/internal/bot/domain"
	"github.com/eventops/staffbot/internal/bot/platform"
	"github.com/eventops/staffbot/internal/bot/roster"
	"github.com/eventops/staffbot/internal/bot/service"
)

func (d *Dispatcher) handleListGroups(ctx context.Context, ev platform.Event) (platform.Reply, error) {
	groups, err := d.Directory.AllGroups(ctx)
	if err != nil {
		return retryReply(), err
	}

	var buf bytes.Buffer
	if err := roster.WriteGroups(&buf, groups); err != nil {
		return retryReply(), err
	}

	return platform.Reply{
		Text:      "Group list",
		Ephemeral: true,
		File: &platform.File{
			Name:    exportName("group_list"),
			Content: buf.Bytes(),
		},
	}, nil
}

func (d *Dispatcher) handleImportGroups(ctx context.Context, ev platform.Event) (platform.Reply, error) {
	// Modal submissions arrive outside the command path, so the privilege
	// check runs again here.
	reply, ok, err := d.requireAdmin(ctx, ev.UserID)
	if err != nil {
		return platform.Reply{}, err
	}
	if !ok {
		return reply, nil
	}

	rows, err := roster.ReadGroups(strings.NewReader(ev.Fields["csv"]))
	if err != nil {
		return platform.Reply{
			Text:      fmt.Sprintf("Could not parse the group list: %v", err),
			Ephemeral: true,
		}, nil
	}

	result, err := d.Directory.ImportGroups(ctx, rows)
	if err != nil {
		return retryReply(), err
	}

	return platform.Reply{
		Text:      fmt.Sprintf("Saved. %d created, %d updated, %d skipped.", result.Created, result.Updated, result.Skipped),
		Ephemeral: true,
	}, nil
}

func (d *Dispatcher) handleListParticipants(ctx context.Context, ev platform.Event) (platform.Reply, error) {
	participants, err := d.Directory.Participants(ctx)
	if err != nil {
		return retryReply(), err
	}

	var buf bytes.Buffer
	if err := roster.WriteParticipants(&buf, participants); err != nil {
		return retryReply(), err
	}

	return platform.Reply{
		Text:      "Participant list",
		Ephemeral: true,
		File: &platform.File{
			Name:    exportName("participants"),
			Content: buf.Bytes(),
		},
	}, nil
}

func (d *Dispatcher) handleUpdateParticipant(ctx context.Context, ev platform.Event) (platform.Reply, error) {
	userID, err := strconv.ParseInt(ev.Fields["user_id"], 10, 64)
	if err != nil {
		return platform.Reply{Text: "A target user is required.", Ephemeral: true}, nil
	}

	var patch domain.ParticipantPatch
	if v, ok := ev.Fields["last_name"]; ok && v != "" {
		patch.LastName = &v
	}
	if v, ok := ev.Fields["first_name"]; ok && v != "" {
		patch.FirstName = &v
	}
	if v, ok := ev.Fields["github_user_name"]; ok && v != "" {
		patch.GitHubUserName = &v
	}
	if v, ok := ev.Fields["group_id"]; ok && v != "" {
		groupID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return platform.Reply{Text: "The group id must be a number.", Ephemeral: true}, nil
		}
		patch.GroupID = &groupID
	}

	created, err := d.Directory.UpsertParticipant(ctx, userID, patch)
	if err != nil {
		if errors.Is(err, service.ErrIncompletePatch) {
			return platform.Reply{
				Text:      "This user is not registered yet: creating a record requires every field.",
				Ephemeral: true,
			}, nil
		}
		return retryReply(), err
	}

	if created {
		return platform.Reply{Text: "Participant created.", Ephemeral: true}, nil
	}
	return platform.Reply{Text: "Participant updated.", Ephemeral: true}, nil
}

func (d *Dispatcher) handleSyncRoles(ctx context.Context, ev platform.Event) (platform.Reply, error) {
	roleID, err := strconv.ParseInt(ev.Fields["role_id"], 10, 64)
	if err != nil {
		return platform.Reply{Text: "A target role is required.", Ephemeral: true}, nil
	}

	opts := service.SyncOptions{
		RoleID: roleID,
		Invert: ev.Fields["invert"] == "true",
	}
	if v := ev.Fields["scope_role_id"]; v != "" {
		scopeID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return platform.Reply{Text: "The scope role must be a role id.", Ephemeral: true}, nil
		}
		opts.ScopeRoleID = &scopeID
	}

	result, err := d.RoleSync.Sync(ctx, opts)
	if err != nil {
		return retryReply(), err
	}

	return platform.Reply{
		Text:      fmt.Sprintf("Roles synchronized. %d granted, %d revoked, %d failed.", result.Granted, result.Revoked, result.Failed),
		Ephemeral: true,
	}, nil
}

func (d *Dispatcher) handleSetNick(ctx context.Context, ev platform.Event) (platform.Reply, error) {
	result, err := d.Nickname.Apply(ctx, ev.Fields["template"])
	if err != nil {
		return retryReply(), err
	}

	return platform.Reply{
		Text:      fmt.Sprintf("Nicknames set. %d updated, %d skipped, %d failed.", result.Updated, result.Skipped, result.Failed),
		Ephemeral: true,
	}, nil
}

var roleIDPattern = regexp.MustCompile(`\d+`)

func (d *Dispatcher) handleRoleAudit(ctx context.Context, ev platform.Event) (platform.Reply, error) {
	guildRoles, err := d.Gateway.Roles(ctx)
	if err != nil {
		return retryReply(), err
	}

	// An explicit role list filters the audit; role mentions and bare ids
	// both work, in the order given. No list means every guild role.
	roles := guildRoles
	if raw := ev.Fields["roles"]; raw != "" {
		byID := make(map[int64]platform.Role, len(guildRoles))
		for _, r := range guildRoles {
			byID[r.ID] = r
		}
		roles = nil
		for _, m := range roleIDPattern.FindAllString(raw, -1) {
			id, err := strconv.ParseInt(m, 10, 64)
			if err != nil {
				continue
			}
			if r, ok := byID[id]; ok {
				roles = append(roles, r)
			}
		}
	}

	participants, err := d.Directory.Participants(ctx)
	if err != nil {
		return retryReply(), err
	}

	// Only participants present in the guild appear in the audit, and
	// membership cells come from the live role state.
	membership := make(map[int64]map[int64]struct{})
	for _, r := range roles {
		ids, err := d.Gateway.RoleMemberIDs(ctx, r.ID)
		if err != nil {
			return retryReply(), err
		}
		for _, id := range ids {
			if membership[id] == nil {
				membership[id] = make(map[int64]struct{})
			}
			membership[id][r.ID] = struct{}{}
		}
	}

	guildIDs, err := d.Gateway.GuildMemberIDs(ctx)
	if err != nil {
		return retryReply(), err
	}
	inGuild := make(map[int64]struct{}, len(guildIDs))
	for _, id := range guildIDs {
		inGuild[id] = struct{}{}
	}
	present := participants[:0:0]
	for _, p := range participants {
		if _, ok := inGuild[p.DiscordUserID]; ok {
			present = append(present, p)
		}
	}

	var buf bytes.Buffer
	err = roster.WriteRoleMatrix(&buf, present, roles, func(userID, roleID int64) bool {
		_, ok := membership[userID][roleID]
		return ok
	})
	if err != nil {
		return retryReply(), err
	}

	return platform.Reply{
		Text:      "Role audit list",
		Ephemeral: true,
		File: &platform.File{
			Name:    exportName("modify_roles"),
			Content: buf.Bytes(),
		},
	}, nil
}

func (d *Dispatcher) handleImportRoleMatrix(ctx context.Context, ev platform.Event) (platform.Reply, error) {
	reply, ok, err := d.requireAdmin(ctx, ev.UserID)
	if err != nil {
		return platform.Reply{}, err
	}
	if !ok {
		return reply, nil
	}

	rows, err := roster.ReadRoleMatrix(strings.NewReader(ev.Fields["csv"]))
	if err != nil {
		return platform.Reply{
			Text:      fmt.Sprintf("Could not parse the role matrix: %v", err),
			Ephemeral: true,
		}, nil
	}

	result, err := d.RoleSync.ApplyMatrix(ctx, rows)
	if err != nil {
		return retryReply(), err
	}

	return platform.Reply{
		Text:      fmt.Sprintf("Roles updated. %d granted, %d revoked, %d failed.", result.Granted, result.Revoked, result.Failed),
		Ephemeral: true,
	}, nil
}

func exportName(prefix string) string {
	return fmt.Sprintf("%s_%s.csv", prefix, time.Now().Format("20060102_150405"))
}
