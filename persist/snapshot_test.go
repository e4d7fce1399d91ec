package persist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/qsync/cache"
	"github.com/hupe1980/qsync/keyset"
	"github.com/hupe1980/qsync/record"
)

func seedCache(t *testing.T) *cache.Memory {
	t.Helper()
	keys := keyset.NewBuilder("user")
	m := cache.NewMemory()

	m.Set(keys.Detail("u1"), cache.RecordEntry(record.Record{
		"id":   record.String("u1"),
		"name": record.String("alice"),
	}))
	m.Set(keys.Collection("u1", "watchlist", record.Where(record.Gte("rating", record.Int(7)))), cache.ListEntry([]record.Record{
		{"id": record.String("a1"), "rating": record.Int(9)},
	}))
	m.Set(keys.Collection("u1", "history"), cache.PagesEntry([][]record.Record{
		{{"id": record.String("h1")}},
		{{"id": record.String("h2")}},
	}))
	m.Set(keys.Item("u1", "watchlist", "gone"), cache.AbsentEntry())
	return m
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	src := seedCache(t)
	keys := keyset.NewBuilder("user")

	data, err := Snapshot(src, nil)
	require.NoError(t, err)

	dst := cache.NewMemory()
	require.NoError(t, Restore(dst, data))
	assert.Equal(t, src.Len(), dst.Len())

	for _, kv := range src.All(func(keyset.Key) bool { return true }) {
		got, ok := dst.Get(kv.Key)
		require.True(t, ok, "missing key %s", kv.Key)
		assert.True(t, got.Equal(kv.Entry), "entry mismatch at %s", kv.Key)
		assert.True(t, dst.IsStale(kv.Key), "restored entries must start stale")
	}

	// Keys survive structurally: prefix scans work on the restored cache.
	matches := dst.All(func(k keyset.Key) bool {
		return k.HasPrefix(keys.Collection("u1", "watchlist"))
	})
	assert.Len(t, matches, 2)
}

func TestRestoreRejectsMalformedData(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"too short", []byte("QS")},
		{"bad magic", []byte("XXXX\x01\x07msgpack\x00\x00\x00\x00\x00\x00\x00\x00")},
		{"bad version", []byte("QSNP\x09\x07msgpack\x00\x00\x00\x00\x00\x00\x00\x00")},
		{"unknown codec", []byte("QSNP\x01\x03xml\x00\x00\x00\x00\x00\x00\x00\x00")},
		{"truncated header", []byte("QSNP\x01\x07msg")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := cache.NewMemory()
			err := Restore(dst, tt.data)
			require.Error(t, err)
			assert.Equal(t, 0, dst.Len(), "failed restore must not touch the cache")
		})
	}
}

func TestSnapshotEmptyCache(t *testing.T) {
	data, err := Snapshot(cache.NewMemory(), nil)
	require.NoError(t, err)

	dst := cache.NewMemory()
	require.NoError(t, Restore(dst, data))
	assert.Equal(t, 0, dst.Len())
}
