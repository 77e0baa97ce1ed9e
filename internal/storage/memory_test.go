package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/assistente-financeiro/assistente-financeiro/internal/storage"
)

func TestMemoryGetSetDelete(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemory()

	_, err := s.Get(ctx, "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Set(ctx, "a", "1"))
	require.NoError(t, s.Set(ctx, "b", "2"))
	v, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, "1", v)

	require.NoError(t, s.Delete(ctx, "a", "nope"))
	_, err = s.Get(ctx, "a")
	require.ErrorIs(t, err, storage.ErrNotFound)

	keys, err := s.Keys(ctx, "")
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, keys)
}

func TestMemoryWatchReportsWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := storage.NewMemory()

	changes, err := s.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, "k", "v"))
	require.NoError(t, s.Delete(ctx, "k"))

	require.Equal(t, storage.Change{Key: "k"}, receive(t, changes))
	require.Equal(t, storage.Change{Key: "k", Deleted: true}, receive(t, changes))

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-changes:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestLoadJSONDropsCorruptValue(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemory()
	require.NoError(t, s.Set(ctx, "users", "{not json"))

	var dest []string
	found, err := storage.LoadJSON(ctx, s, "users", &dest)
	require.NoError(t, err)
	require.False(t, found)
	require.Nil(t, dest)

	_, err = s.Get(ctx, "users")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, storage.SaveJSON(ctx, s, "users", []string{"x"}))
	found, err = storage.LoadJSON(ctx, s, "users", &dest)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []string{"x"}, dest)
}

func TestLoadJSONPropagatesBackendErrors(t *testing.T) {
	ctx := context.Background()
	var dest map[string]string
	_, err := storage.LoadJSON(ctx, failingStore{}, "k", &dest)
	require.Error(t, err)
	require.NotErrorIs(t, err, storage.ErrNotFound)
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, error) {
	return "", context.DeadlineExceeded
}

func (failingStore) Set(context.Context, string, string) error {
	return context.DeadlineExceeded
}

func (failingStore) Delete(context.Context, ...string) error {
	return context.DeadlineExceeded
}

func (failingStore) Keys(context.Context, string) ([]string, error) {
	return nil, context.DeadlineExceeded
}

func receive(t *testing.T, ch <-chan storage.Change) storage.Change {
	t.Helper()
	select {
	case c, ok := <-ch:
		require.True(t, ok, "change stream closed")
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change")
	}
	return storage.Change{}
}
