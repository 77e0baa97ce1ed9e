package storage_test

import (
	"context"
	"sort"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/assistente-financeiro/assistente-financeiro/internal/storage"
)

func newRedisStore(t *testing.T) *storage.Redis {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return storage.NewRedis(client)
}

func TestRedisRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newRedisStore(t)

	_, err := s.Get(ctx, "users")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Set(ctx, "users", "[]"))
	require.NoError(t, s.Set(ctx, "user_1_goals", "[]"))
	require.NoError(t, s.Set(ctx, "user_1_transactions", "[]"))
	require.NoError(t, s.Set(ctx, "user_10_goals", "[]"))

	keys, err := s.Keys(ctx, "user_1_")
	require.NoError(t, err)
	sort.Strings(keys)
	require.Equal(t, []string{"user_1_goals", "user_1_transactions"}, keys)

	require.NoError(t, s.Delete(ctx, keys...))
	keys, err = s.Keys(ctx, "user_1_")
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestRedisKeysEscapesGlob(t *testing.T) {
	ctx := context.Background()
	s := newRedisStore(t)
	require.NoError(t, s.Set(ctx, "a*b", "1"))
	require.NoError(t, s.Set(ctx, "axb", "1"))

	keys, err := s.Keys(ctx, "a*")
	require.NoError(t, err)
	require.Equal(t, []string{"a*b"}, keys)
}

func TestRedisWatchPublishesChanges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newRedisStore(t)

	changes, err := s.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, "currentUser", "{}"))
	require.Equal(t, storage.Change{Key: "currentUser"}, receive(t, changes))

	require.NoError(t, s.Delete(ctx, "currentUser"))
	require.Equal(t, storage.Change{Key: "currentUser", Deleted: true}, receive(t, changes))
}
