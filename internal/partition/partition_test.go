package partition_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/assistente-financeiro/assistente-financeiro/internal/partition"
	"github.com/assistente-financeiro/assistente-financeiro/internal/storage"
)

func TestPrefix(t *testing.T) {
	require.Equal(t, "user_42_", partition.Prefix("42"))
	require.Equal(t, "user_guest_", partition.Prefix(""))
	require.Equal(t, "user_42_budgetSettings", partition.Key("42", partition.BudgetSettings))
}

func TestResolverIsolatesUsers(t *testing.T) {
	ctx := context.Background()
	root := storage.NewMemory()
	profile := storage.WithPrefix(root, "profile:p1:")
	r := partition.NewResolver(root)

	a := r.For(profile, "A")
	b := r.For(profile, "B")
	require.NoError(t, a.Store.Set(ctx, partition.Transactions, `[{"id":"t1"}]`))

	_, err := b.Store.Get(ctx, partition.Transactions)
	require.ErrorIs(t, err, storage.ErrNotFound)

	raw, err := root.Get(ctx, "user_A_transactions")
	require.NoError(t, err)
	require.Equal(t, `[{"id":"t1"}]`, raw)
}

func TestGuestLivesInProfileAndIsPurged(t *testing.T) {
	ctx := context.Background()
	root := storage.NewMemory()
	profile := storage.WithPrefix(root, "profile:p1:")
	r := partition.NewResolver(root)

	guest := r.For(profile, "")
	require.True(t, guest.IsGuest())
	require.NoError(t, guest.Store.Set(ctx, partition.Goals, "[]"))
	require.NoError(t, r.For(profile, "A").Store.Set(ctx, partition.Goals, "[]"))
	require.NoError(t, profile.Set(ctx, "currentUser", "{}"))

	_, err := root.Get(ctx, "profile:p1:user_guest_goals")
	require.NoError(t, err)

	require.NoError(t, partition.PurgeGuest(ctx, profile))

	keys, err := root.Keys(ctx, "")
	require.NoError(t, err)
	require.Equal(t, []string{"profile:p1:currentUser", "user_A_goals"}, keys)
}

func TestRemoveRefusesGuest(t *testing.T) {
	r := partition.NewResolver(storage.NewMemory())
	require.Error(t, r.Remove(context.Background(), partition.Guest))
}

func TestOwnersListsRootPartitions(t *testing.T) {
	ctx := context.Background()
	root := storage.NewMemory()
	r := partition.NewResolver(root)
	require.NoError(t, root.Set(ctx, "users", "[]"))
	require.NoError(t, root.Set(ctx, partition.Key("b-2", partition.Goals), "[]"))
	require.NoError(t, root.Set(ctx, partition.Key("a_1", partition.Transactions), "[]"))
	require.NoError(t, root.Set(ctx, partition.Key("a_1", partition.BudgetSettings), "[]"))
	require.NoError(t, root.Set(ctx, "user_x_unknown", "[]"))

	owners, err := r.Owners(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a_1", "b-2"}, owners)
}
