package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eventops/staffbot/internal/bot/store"
	"github.com/eventops/staffbot/internal/bot/store/drivers/sqlite"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.ApplyMigrations())
	return st
}

// seedGroups creates n groups and returns their ids in creation order.
func seedGroups(t *testing.T, st store.Store, n int) []int64 {
	t.Helper()

	ctx := context.Background()
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		name := "Group " + string(rune('A'+i))
		short := string(rune('A' + i))
		id, err := st.Groups().CreateGroup(ctx, name, short, false)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func ptr[T any](v T) *T { return &v }
