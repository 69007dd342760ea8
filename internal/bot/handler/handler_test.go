package handler

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eventops/staffbot/internal/bot/domain"
	"github.com/eventops/staffbot/internal/bot/platform"
	"github.com/eventops/staffbot/internal/bot/platform/memory"
	"github.com/eventops/staffbot/internal/bot/service"
	"github.com/eventops/staffbot/internal/bot/store"
	"github.com/eventops/staffbot/internal/bot/store/drivers/sqlite"
)

const (
	adminID  = int64(1)
	memberID = int64(2)
)

func newTestDispatcher(t *testing.T) (*Dispatcher, store.Store, *memory.Gateway) {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	gw := memory.New()
	gw.AddMember(adminID, true)
	gw.AddMember(memberID, false)

	d := &Dispatcher{
		Registration: &service.Registration{
			Store:            st,
			ProfileURLPrefix: service.DefaultProfileURLPrefix,
			MinProfileURLLen: service.DefaultMinProfileURLLen,
		},
		Directory: &service.Directory{Store: st},
		RoleSync:  &service.RoleSync{Store: st, Gateway: gw},
		Nickname:  &service.Nickname{Store: st, Gateway: gw, TeamRolePrefix: "Team "},
		Gateway:   gw,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return d, st, gw
}

func seedGroup(t *testing.T, st store.Store, name, short string) int64 {
	t.Helper()

	id, err := st.Groups().CreateGroup(context.Background(), name, short, false)
	require.NoError(t, err)
	return id
}

func TestHandleRejectsUnknownEvents(t *testing.T) {
	t.Parallel()
	d, _, _ := newTestDispatcher(t)

	_, err := d.Handle(context.Background(), platform.Event{
		Kind:     platform.EventButton,
		CustomID: "mystery_button",
		UserID:   memberID,
	})
	require.ErrorIs(t, err, ErrUnknownEvent)
}

func TestCommandsRequireAdmin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, _, _ := newTestDispatcher(t)

	for _, command := range []string{
		CommandSendStartButton,
		CommandListGroups,
		CommandImportGroups,
		CommandListParticipants,
		CommandUpdateParticipant,
		CommandSyncRoles,
		CommandSetNick,
		CommandRoleAudit,
		CommandImportRoleMatrix,
	} {
		t.Run(command, func(t *testing.T) {
			reply, err := d.Handle(ctx, platform.Event{
				Kind:     platform.EventCommand,
				CustomID: command,
				UserID:   memberID,
			})
			require.NoError(t, err)
			require.True(t, reply.Ephemeral)
			require.Contains(t, reply.Text, "restricted")
		})
	}
}

func TestImportModalsRequireAdmin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, _, _ := newTestDispatcher(t)

	// Modal submissions bypass the command path, so the gate must hold
	// there too.
	for _, id := range []string{CommandImportGroups, CommandImportRoleMatrix} {
		reply, err := d.Handle(ctx, platform.Event{
			Kind:     platform.EventModalSubmit,
			CustomID: id,
			UserID:   memberID,
			Fields:   map[string]string{"csv": "discord_user_id\n"},
		})
		require.NoError(t, err)
		require.Contains(t, reply.Text, "restricted")
	}
}

func TestRegistrationFlowThroughDispatcher(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, st, _ := newTestDispatcher(t)
	groupID := seedGroup(t, st, "Group A", "A")

	// Admin drops the entry button into the channel.
	reply, err := d.Handle(ctx, platform.Event{
		Kind: platform.EventCommand, CustomID: CommandSendStartButton, UserID: adminID,
	})
	require.NoError(t, err)
	require.Equal(t, ComponentStartButton, reply.Component)

	// Member presses it and gets the group selector.
	reply, err = d.Handle(ctx, platform.Event{
		Kind: platform.EventButton, CustomID: ComponentStartButton, UserID: memberID,
	})
	require.NoError(t, err)
	require.Equal(t, ComponentGroupSelector, reply.Component)

	// Member picks a group.
	reply, err = d.Handle(ctx, platform.Event{
		Kind: platform.EventMenuSelect, CustomID: ComponentGroupSelector,
		UserID: memberID, Values: []string{strconv.FormatInt(groupID, 10)},
	})
	require.NoError(t, err)
	require.Equal(t, ComponentInfoModalOpen, reply.Component)

	// The modal opens and the member submits their details.
	reply, err = d.Handle(ctx, platform.Event{
		Kind: platform.EventButton, CustomID: ComponentInfoModalOpen, UserID: memberID,
	})
	require.NoError(t, err)
	require.Equal(t, ComponentInfoModal, reply.Component)

	reply, err = d.Handle(ctx, platform.Event{
		Kind: platform.EventModalSubmit, CustomID: ComponentInfoModal, UserID: memberID,
		Fields: map[string]string{
			"last_name":   "田中",
			"first_name":  "太郎",
			"profile_url": "https://github.com/tanaka",
		},
	})
	require.NoError(t, err)
	require.Equal(t, ComponentConfirm, reply.Component)
	require.Contains(t, reply.Text, "田中 太郎")
	require.Contains(t, reply.Text, "Group A")

	// Member confirms; the record lands in the directory.
	reply, err = d.Handle(ctx, platform.Event{
		Kind: platform.EventButton, CustomID: ComponentConfirm, UserID: memberID,
	})
	require.NoError(t, err)
	require.Contains(t, reply.Text, "Registered")

	p, err := st.Participants().GetParticipantByDiscordUserID(ctx, memberID)
	require.NoError(t, err)
	require.Equal(t, "tanaka", p.GitHubUserName)
	require.Equal(t, groupID, p.GroupID)
}

func TestRegistrationFlowErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("start button with no open groups", func(t *testing.T) {
		t.Parallel()
		d, _, _ := newTestDispatcher(t)

		reply, err := d.Handle(ctx, platform.Event{
			Kind: platform.EventButton, CustomID: ComponentStartButton, UserID: memberID,
		})
		require.NoError(t, err)
		require.Contains(t, reply.Text, "No groups")
		require.Empty(t, reply.Component)
	})

	t.Run("selecting a vanished group", func(t *testing.T) {
		t.Parallel()
		d, _, _ := newTestDispatcher(t)

		reply, err := d.Handle(ctx, platform.Event{
			Kind: platform.EventMenuSelect, CustomID: ComponentGroupSelector,
			UserID: memberID, Values: []string{"42"},
		})
		require.NoError(t, err)
		require.Contains(t, reply.Text, "no longer exists")
	})

	t.Run("submitting without a session", func(t *testing.T) {
		t.Parallel()
		d, _, _ := newTestDispatcher(t)

		reply, err := d.Handle(ctx, platform.Event{
			Kind: platform.EventModalSubmit, CustomID: ComponentInfoModal, UserID: memberID,
			Fields: map[string]string{
				"last_name": "田中", "first_name": "太郎",
				"profile_url": "https://github.com/tanaka",
			},
		})
		require.NoError(t, err)
		require.Contains(t, reply.Text, "start over")
	})

	t.Run("bad profile url prompts a resubmit", func(t *testing.T) {
		t.Parallel()
		d, st, _ := newTestDispatcher(t)
		groupID := seedGroup(t, st, "Group A", "A")

		_, err := d.Handle(ctx, platform.Event{
			Kind: platform.EventMenuSelect, CustomID: ComponentGroupSelector,
			UserID: memberID, Values: []string{strconv.FormatInt(groupID, 10)},
		})
		require.NoError(t, err)

		reply, err := d.Handle(ctx, platform.Event{
			Kind: platform.EventModalSubmit, CustomID: ComponentInfoModal, UserID: memberID,
			Fields: map[string]string{
				"last_name": "田中", "first_name": "太郎",
				"profile_url": "https://example.com/tanaka",
			},
		})
		require.NoError(t, err)
		require.Contains(t, reply.Text, "not valid")
	})
}

func TestGroupImportAndExport(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, _, _ := newTestDispatcher(t)

	// The command only opens the paste modal.
	reply, err := d.Handle(ctx, platform.Event{
		Kind: platform.EventCommand, CustomID: CommandImportGroups, UserID: adminID,
	})
	require.NoError(t, err)
	require.Equal(t, CommandImportGroups, reply.Component)

	reply, err = d.Handle(ctx, platform.Event{
		Kind: platform.EventModalSubmit, CustomID: CommandImportGroups, UserID: adminID,
		Fields: map[string]string{
			"csv": "id,name,short_name,is_disabled\n,Group A,A,0\n,Group B,B,1\n",
		},
	})
	require.NoError(t, err)
	require.Contains(t, reply.Text, "2 created")

	reply, err = d.Handle(ctx, platform.Event{
		Kind: platform.EventCommand, CustomID: CommandListGroups, UserID: adminID,
	})
	require.NoError(t, err)
	require.NotNil(t, reply.File)
	require.True(t, strings.HasPrefix(reply.File.Name, "group_list_"))

	csv := string(reply.File.Content)
	require.Contains(t, csv, "Group A,A,0")
	require.Contains(t, csv, "Group B,B,1")
}

func TestGroupImportParseFailure(t *testing.T) {
	t.Parallel()
	d, _, _ := newTestDispatcher(t)

	reply, err := d.Handle(context.Background(), platform.Event{
		Kind: platform.EventModalSubmit, CustomID: CommandImportGroups, UserID: adminID,
		Fields: map[string]string{"csv": "id,name\n1,Broken\n"},
	})
	require.NoError(t, err)
	require.Contains(t, reply.Text, "Could not parse")
}

func TestUpdateParticipantCommand(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, st, _ := newTestDispatcher(t)
	groupID := seedGroup(t, st, "Group A", "A")

	reply, err := d.Handle(ctx, platform.Event{
		Kind: platform.EventCommand, CustomID: CommandUpdateParticipant, UserID: adminID,
		Fields: map[string]string{
			"user_id":          strconv.FormatInt(memberID, 10),
			"last_name":        "田中",
			"first_name":       "太郎",
			"group_id":         strconv.FormatInt(groupID, 10),
			"github_user_name": "tanaka",
		},
	})
	require.NoError(t, err)
	require.Contains(t, reply.Text, "created")

	reply, err = d.Handle(ctx, platform.Event{
		Kind: platform.EventCommand, CustomID: CommandUpdateParticipant, UserID: adminID,
		Fields: map[string]string{
			"user_id":   strconv.FormatInt(memberID, 10),
			"last_name": "山田",
		},
	})
	require.NoError(t, err)
	require.Contains(t, reply.Text, "updated")

	p, err := st.Participants().GetParticipantByDiscordUserID(ctx, memberID)
	require.NoError(t, err)
	require.Equal(t, "山田", p.LastName)
	require.Equal(t, "太郎", p.FirstName)
}

func TestSyncRolesCommand(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, st, gw := newTestDispatcher(t)
	groupID := seedGroup(t, st, "Group A", "A")

	_, err := st.Participants().CreateParticipant(ctx, domain.Participant{
		LastName: "田中", FirstName: "太郎",
		GroupID: groupID, GitHubUserName: "tanaka", DiscordUserID: memberID,
	})
	require.NoError(t, err)

	const roleID = int64(500)
	gw.AddRole(roleID, "participant")

	reply, err := d.Handle(ctx, platform.Event{
		Kind: platform.EventCommand, CustomID: CommandSyncRoles, UserID: adminID,
		Fields: map[string]string{"role_id": strconv.FormatInt(roleID, 10)},
	})
	require.NoError(t, err)
	require.Contains(t, reply.Text, "1 granted")

	members, err := gw.RoleMemberIDs(ctx, roleID)
	require.NoError(t, err)
	require.Equal(t, []int64{memberID}, members)
}

func TestRoleAuditCommand(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, st, gw := newTestDispatcher(t)
	groupID := seedGroup(t, st, "Group A", "A")

	_, err := st.Participants().CreateParticipant(ctx, domain.Participant{
		LastName: "田中", FirstName: "太郎",
		GroupID: groupID, GitHubUserName: "tanaka", DiscordUserID: memberID,
	})
	require.NoError(t, err)
	// Registered but no longer in the guild; must not appear in the audit.
	_, err = st.Participants().CreateParticipant(ctx, domain.Participant{
		LastName: "山田", FirstName: "花子",
		GroupID: groupID, GitHubUserName: "yamada", DiscordUserID: 999,
	})
	require.NoError(t, err)

	gw.AddRole(10, "staff")
	gw.AddRole(11, "mentor")
	gw.AssignRole(memberID, 10)

	t.Run("audits every guild role by default", func(t *testing.T) {
		reply, err := d.Handle(ctx, platform.Event{
			Kind: platform.EventCommand, CustomID: CommandRoleAudit, UserID: adminID,
		})
		require.NoError(t, err)
		require.NotNil(t, reply.File)

		lines := strings.Split(strings.TrimSpace(string(reply.File.Content)), "\n")
		require.Len(t, lines, 2)
		require.True(t, strings.HasSuffix(lines[0], ",mentor,staff"))
		require.True(t, strings.HasSuffix(lines[1], ",,1"))
	})

	t.Run("an explicit role list filters the columns", func(t *testing.T) {
		reply, err := d.Handle(ctx, platform.Event{
			Kind: platform.EventCommand, CustomID: CommandRoleAudit, UserID: adminID,
			Fields: map[string]string{"roles": "<@&10>"},
		})
		require.NoError(t, err)
		require.NotNil(t, reply.File)

		lines := strings.Split(strings.TrimSpace(string(reply.File.Content)), "\n")
		require.True(t, strings.HasSuffix(lines[0], ",staff"))
		require.NotContains(t, lines[0], "mentor")
	})
}

func TestImportRoleMatrixCommand(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, _, gw := newTestDispatcher(t)

	gw.AddRole(10, "staff")

	reply, err := d.Handle(ctx, platform.Event{
		Kind: platform.EventModalSubmit, CustomID: CommandImportRoleMatrix, UserID: adminID,
		Fields: map[string]string{
			"csv": "discord_user_id,staff\n" + strconv.FormatInt(memberID, 10) + ",1\n",
		},
	})
	require.NoError(t, err)
	require.Contains(t, reply.Text, "1 granted")

	members, err := gw.RoleMemberIDs(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, []int64{memberID}, members)
}

func TestSetNickCommand(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, st, gw := newTestDispatcher(t)
	groupID := seedGroup(t, st, "Group A", "A")

	_, err := st.Participants().CreateParticipant(ctx, domain.Participant{
		LastName: "田中", FirstName: "太郎",
		GroupID: groupID, GitHubUserName: "tanaka", DiscordUserID: memberID,
	})
	require.NoError(t, err)

	gw.AddRole(20, "Team Alpha")
	gw.AssignRole(memberID, 20)

	reply, err := d.Handle(ctx, platform.Event{
		Kind: platform.EventCommand, CustomID: CommandSetNick, UserID: adminID,
	})
	require.NoError(t, err)
	require.Contains(t, reply.Text, "1 updated")
	require.Equal(t, "[Alpha]田中 太郎_A", gw.Nickname(memberID))
}
