package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/assistente-financeiro/assistente-financeiro/internal/storage"
)

func TestFilePersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "store.json")

	first, err := storage.NewFile(path)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "users", `[{"id":"1"}]`))
	require.NoError(t, first.Set(ctx, "theme", "dark"))
	require.NoError(t, first.Delete(ctx, "theme"))

	second, err := storage.NewFile(path)
	require.NoError(t, err)
	v, err := second.Get(ctx, "users")
	require.NoError(t, err)
	require.Equal(t, `[{"id":"1"}]`, v)
	_, err = second.Get(ctx, "theme")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFileRecoversFromCorruptDocument(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o600))

	s, err := storage.NewFile(path)
	require.NoError(t, err)
	keys, err := s.Keys(ctx, "")
	require.NoError(t, err)
	require.Empty(t, keys)

	_, err = os.Stat(path + ".corrupt")
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, "k", "v"))
	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", v)
}

func TestFileWatchSeesWritesFromAnotherInstance(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	path := filepath.Join(t.TempDir(), "store.json")

	watcher, err := storage.NewFile(path)
	require.NoError(t, err)
	changes, err := watcher.Watch(ctx)
	require.NoError(t, err)

	writer, err := storage.NewFile(path)
	require.NoError(t, err)
	require.NoError(t, writer.Set(ctx, "currentUser", "{}"))

	require.Equal(t, storage.Change{Key: "currentUser"}, receive(t, changes))
}
