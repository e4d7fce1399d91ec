package persist

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBlobStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Put(ctx, "cache.snapshot", []byte("v1")))
	got, err := store.Get(ctx, "cache.snapshot")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	// Overwrite replaces atomically.
	require.NoError(t, store.Put(ctx, "cache.snapshot", []byte("v2")))
	got, err = store.Get(ctx, "cache.snapshot")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)

	require.NoError(t, store.Put(ctx, "other.snapshot", []byte("x")))
	names, err := store.List(ctx, "cache.")
	require.NoError(t, err)
	assert.Equal(t, []string{"cache.snapshot"}, names)

	require.NoError(t, store.Delete(ctx, "cache.snapshot"))
	require.NoError(t, store.Delete(ctx, "cache.snapshot"), "double delete is fine")
	_, err = store.Get(ctx, "cache.snapshot")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalListSkipsTempFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewLocal(dir)
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "cache.snapshot", []byte("v1")))
	// A leftover temp file from a crashed writer must not show up.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cache.snapshot.tmp-123"), []byte("junk"), 0o644))

	names, err := store.List(ctx, "cache.")
	require.NoError(t, err)
	assert.Equal(t, []string{"cache.snapshot"}, names)
}

func TestMemoryBlobStoreIsolatesData(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryBlobStore()

	data := []byte("abc")
	require.NoError(t, store.Put(ctx, "blob", data))
	data[0] = 'z'

	got, err := store.Get(ctx, "blob")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)

	got[1] = 'z'
	again, _ := store.Get(ctx, "blob")
	assert.Equal(t, []byte("abc"), again)
}
