package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eventops/staffbot/internal/bot/domain"
	"github.com/eventops/staffbot/internal/bot/roster"
)

func TestImportGroups(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("creates updates and skips by id", func(t *testing.T) {
		t.Parallel()
		st := newTestStore(t)
		ids := seedGroups(t, st, 2)
		dir := &Directory{Store: st}

		result, err := dir.ImportGroups(ctx, []roster.GroupRow{
			{Name: "Logistics", ShortName: "LG"},
			{ID: ptr(ids[0]), Name: "Group A renamed", ShortName: "A", Disabled: true},
			{ID: ptr(int64(9000)), Name: "Ghost", ShortName: "GH"},
		})
		require.NoError(t, err)
		require.Equal(t, ImportResult{Created: 1, Updated: 1, Skipped: 1}, result)

		groups, err := dir.AllGroups(ctx)
		require.NoError(t, err)
		require.Len(t, groups, 3)

		updated, err := dir.GetGroup(ctx, ids[0])
		require.NoError(t, err)
		require.Equal(t, "Group A renamed", updated.Name)
		require.True(t, updated.Disabled)
	})

	t.Run("export import round trip changes nothing", func(t *testing.T) {
		t.Parallel()
		st := newTestStore(t)
		seedGroups(t, st, 3)
		dir := &Directory{Store: st}

		before, err := dir.AllGroups(ctx)
		require.NoError(t, err)

		var buf bytes.Buffer
		require.NoError(t, roster.WriteGroups(&buf, before))
		rows, err := roster.ReadGroups(&buf)
		require.NoError(t, err)

		result, err := dir.ImportGroups(ctx, rows)
		require.NoError(t, err)
		require.Equal(t, ImportResult{Updated: 3}, result)

		after, err := dir.AllGroups(ctx)
		require.NoError(t, err)
		require.Len(t, after, 3)
		for i := range after {
			require.Equal(t, before[i].Name, after[i].Name)
			require.Equal(t, before[i].ShortName, after[i].ShortName)
			require.Equal(t, before[i].Disabled, after[i].Disabled)
		}
	})

}

func TestImportParticipantsRollsBack(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := newTestStore(t)
	ids := seedGroups(t, st, 1)
	dir := &Directory{Store: st}

	// The first row would succeed on its own; the incomplete second row
	// fails the transaction, so neither survives.
	_, err := dir.ImportParticipants(ctx, []roster.ParticipantRow{
		{DiscordUserID: 1, Patch: domain.ParticipantPatch{
			LastName: ptr("山田"), FirstName: ptr("花子"),
			GroupID: ptr(ids[0]), GitHubUserName: ptr("yamada"),
		}},
		{DiscordUserID: 2, Patch: domain.ParticipantPatch{LastName: ptr("incomplete")}},
	})
	require.ErrorIs(t, err, ErrIncompletePatch)

	participants, err := dir.Participants(ctx)
	require.NoError(t, err)
	require.Empty(t, participants)
}

func TestImportParticipants(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := newTestStore(t)
	ids := seedGroups(t, st, 2)
	seedParticipant(t, st, ids[0], 100)
	dir := &Directory{Store: st}

	existing, err := dir.Participants(ctx)
	require.NoError(t, err)
	require.Len(t, existing, 1)

	result, err := dir.ImportParticipants(ctx, []roster.ParticipantRow{
		{DiscordUserID: 200, Patch: domain.ParticipantPatch{
			LastName: ptr("山田"), FirstName: ptr("花子"),
			GroupID: ptr(ids[1]), GitHubUserName: ptr("yamada"),
		}},
		// Partial update: only the group moves, the names stay.
		{ID: ptr(existing[0].ID), Patch: domain.ParticipantPatch{GroupID: ptr(ids[1])}},
		{ID: ptr(int64(9000)), Patch: domain.ParticipantPatch{LastName: ptr("ghost")}},
	})
	require.NoError(t, err)
	require.Equal(t, ImportResult{Created: 1, Updated: 1, Skipped: 1}, result)

	participants, err := dir.Participants(ctx)
	require.NoError(t, err)
	require.Len(t, participants, 2)

	moved := participants[0]
	require.Equal(t, "田中", moved.LastName)
	require.Equal(t, ids[1], moved.GroupID)
	require.Equal(t, "tanaka", moved.GitHubUserName)
}

func TestParticipantRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := newTestStore(t)
	ids := seedGroups(t, st, 1)
	seedParticipant(t, st, ids[0], 100)
	seedParticipant(t, st, ids[0], 200)
	dir := &Directory{Store: st}

	before, err := dir.Participants(ctx)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, roster.WriteParticipants(&buf, before))
	rows, err := roster.ReadParticipants(&buf)
	require.NoError(t, err)

	result, err := dir.ImportParticipants(ctx, rows)
	require.NoError(t, err)
	require.Equal(t, ImportResult{Updated: 2}, result)

	after, err := dir.Participants(ctx)
	require.NoError(t, err)
	require.Equal(t, len(before), len(after))
	for i := range after {
		require.Equal(t, before[i].ID, after[i].ID)
		require.Equal(t, before[i].LastName, after[i].LastName)
		require.Equal(t, before[i].DiscordUserID, after[i].DiscordUserID)
	}
}

func TestUpsertParticipant(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := newTestStore(t)
	ids := seedGroups(t, st, 2)
	dir := &Directory{Store: st}

	t.Run("creates from a complete patch", func(t *testing.T) {
		created, err := dir.UpsertParticipant(ctx, 300, domain.ParticipantPatch{
			LastName: ptr("佐藤"), FirstName: ptr("次郎"),
			GroupID: ptr(ids[0]), GitHubUserName: ptr("sato"),
		})
		require.NoError(t, err)
		require.True(t, created)
	})

	t.Run("rejects an incomplete create", func(t *testing.T) {
		_, err := dir.UpsertParticipant(ctx, 400, domain.ParticipantPatch{
			LastName: ptr("佐藤"),
		})
		require.ErrorIs(t, err, ErrIncompletePatch)
	})

	t.Run("updates only the carried fields", func(t *testing.T) {
		created, err := dir.UpsertParticipant(ctx, 300, domain.ParticipantPatch{
			GroupID: ptr(ids[1]),
		})
		require.NoError(t, err)
		require.False(t, created)

		p, err := st.Participants().GetParticipantByDiscordUserID(ctx, 300)
		require.NoError(t, err)
		require.Equal(t, "佐藤", p.LastName)
		require.Equal(t, ids[1], p.GroupID)
	})
}
