package qsync

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/qsync/cache"
	"github.com/hupe1980/qsync/keyset"
	"github.com/hupe1980/qsync/mutation"
	"github.com/hupe1980/qsync/record"
	"github.com/hupe1980/qsync/remote"
)

func newTestClient(t *testing.T, optFns ...Option) (*Client, *remote.Memory) {
	t.Helper()
	store := remote.NewMemory()
	client, err := New(store, optFns...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, store
}

func watchlistFetch(store *remote.Memory, userID string) FetchFunc {
	return func(ctx context.Context) (cache.Entry, error) {
		rows, err := store.Select(ctx, "activities", record.Where(
			record.Eq("user_id", record.String(userID)),
		))
		if err != nil {
			return cache.Entry{}, err
		}
		return cache.ListEntry(rows), nil
	}
}

func TestClientQueryCachesFetch(t *testing.T) {
	client, store := newTestClient(t)
	keys := keyset.NewBuilder("user")
	key := keys.Collection("u1", "watchlist")

	store.Seed("activities", record.Record{
		"id":      record.String("a1"),
		"user_id": record.String("u1"),
	})

	var fetches int32
	fetch := func(ctx context.Context) (cache.Entry, error) {
		atomic.AddInt32(&fetches, 1)
		return watchlistFetch(store, "u1")(ctx)
	}

	entry, err := client.Query(context.Background(), key, fetch)
	require.NoError(t, err)
	require.Len(t, entry.List, 1)
	assert.Equal(t, "a1", entry.List[0].ID())

	// Second query is served from cache.
	_, err = client.Query(context.Background(), key, fetch)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fetches))
}

func TestClientQueryRefetchesStaleEntry(t *testing.T) {
	client, store := newTestClient(t)
	keys := keyset.NewBuilder("user")
	key := keys.Collection("u1", "watchlist")

	store.Seed("activities", record.Record{
		"id":      record.String("a1"),
		"user_id": record.String("u1"),
	})

	_, err := client.Query(context.Background(), key, watchlistFetch(store, "u1"))
	require.NoError(t, err)

	store.Seed("activities", record.Record{
		"id":      record.String("a2"),
		"user_id": record.String("u1"),
	})
	client.Invalidate(context.Background(), key)

	entry, err := client.Query(context.Background(), key, watchlistFetch(store, "u1"))
	require.NoError(t, err)
	assert.Len(t, entry.List, 2)
	assert.False(t, client.Cache().IsStale(key))
}

func TestClientQueryErrorNotCached(t *testing.T) {
	client, _ := newTestClient(t)
	key := keyset.NewBuilder("user").Collection("u1", "watchlist")

	boom := errors.New("backend down")
	_, err := client.Query(context.Background(), key, func(ctx context.Context) (cache.Entry, error) {
		return cache.Entry{}, boom
	})
	require.ErrorIs(t, err, boom)

	_, ok := client.Cache().Get(key)
	assert.False(t, ok)
}

func TestClientExecuteTranslatesNoRows(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.Execute(context.Background(), mutation.Mutation{
		Name: "activity-update",
		Write: func(ctx context.Context, s remote.Store) (mutation.Result, error) {
			row, err := s.Update(ctx, "activities",
				record.Where(record.Eq("id", record.String("missing"))),
				record.Record{"rating": record.Int(9)})
			if err != nil {
				return mutation.Result{}, err
			}
			return mutation.Result{Record: row}, nil
		},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, remote.ErrNoRows)
}

func TestClientExecuteRequiresWrite(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.Execute(context.Background(), mutation.Mutation{Name: "empty"})
	var invalid *ErrMutationInvalid
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "empty", invalid.Name)
}

func TestClientExecutePatchesCache(t *testing.T) {
	client, _ := newTestClient(t)
	keys := keyset.NewBuilder("user")
	detail := keys.Item("u1", "watchlist", "a1")
	list := keys.Collection("u1", "watchlist")

	client.Cache().Set(list, cache.ListEntry(nil))

	res, err := client.Execute(context.Background(), mutation.Mutation{
		Name:      "activity-add",
		EntityKey: detail,
		Write: func(ctx context.Context, s remote.Store) (mutation.Result, error) {
			row, err := s.Insert(ctx, "activities", record.Record{
				"id":      record.String("a1"),
				"user_id": record.String("u1"),
			})
			if err != nil {
				return mutation.Result{}, err
			}
			return mutation.Result{Record: row}, nil
		},
		Patches: func(res mutation.Result) []mutation.Patch {
			return []mutation.Patch{
				mutation.Replace{Key: detail, Entry: cache.RecordEntry(res.Record)},
				mutation.BulkUpsert{Prefix: list, Record: res.Record},
			}
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.AppliedPatches())

	got, ok := client.Cache().Get(list)
	require.True(t, ok)
	assert.True(t, got.ContainsID("a1"))
}

func TestClientWithRefetch(t *testing.T) {
	store := remote.NewMemory()
	store.Seed("activities", record.Record{
		"id":      record.String("a1"),
		"user_id": record.String("u1"),
	})

	keys := keyset.NewBuilder("user")
	key := keys.Collection("u1", "watchlist")

	refetched := make(chan struct{}, 1)
	client, err := New(store, WithRefetch(func(ctx context.Context, k keyset.Key) (cache.Entry, error) {
		rows, err := store.Select(ctx, "activities", record.Where(
			record.Eq("user_id", record.String("u1")),
		))
		if err != nil {
			return cache.Entry{}, err
		}
		select {
		case refetched <- struct{}{}:
		default:
		}
		return cache.ListEntry(rows), nil
	}))
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Query(context.Background(), key, watchlistFetch(store, "u1"))
	require.NoError(t, err)

	store.Seed("activities", record.Record{
		"id":      record.String("a2"),
		"user_id": record.String("u1"),
	})
	client.Invalidate(context.Background(), key)

	select {
	case <-refetched:
	case <-time.After(2 * time.Second):
		t.Fatal("refetch did not run after invalidation")
	}

	deadline := time.After(2 * time.Second)
	for client.Cache().IsStale(key) {
		select {
		case <-deadline:
			t.Fatal("entry still stale after refetch")
		case <-time.After(5 * time.Millisecond):
		}
	}

	got, _ := client.Cache().Get(key)
	assert.Len(t, got.List, 2)
}

func TestClientMetrics(t *testing.T) {
	metrics := &BasicMetricsCollector{}
	client, store := newTestClient(t, WithMetricsCollector(metrics))
	keys := keyset.NewBuilder("user")
	key := keys.Collection("u1", "watchlist")

	_, err := client.Query(context.Background(), key, watchlistFetch(store, "u1"))
	require.NoError(t, err)
	_, err = client.Query(context.Background(), key, watchlistFetch(store, "u1"))
	require.NoError(t, err)

	_, err = client.Execute(context.Background(), mutation.Mutation{
		Name: "noop",
		Write: func(ctx context.Context, s remote.Store) (mutation.Result, error) {
			return mutation.Result{}, nil
		},
	})
	require.NoError(t, err)

	client.Invalidate(context.Background(), key)

	stats := metrics.GetStats()
	assert.Equal(t, int64(2), stats.QueryCount)
	assert.Equal(t, int64(1), stats.QueryHits)
	assert.Equal(t, int64(1), stats.MutationCount)
	assert.Equal(t, int64(0), stats.MutationErrors)
	assert.Equal(t, int64(1), stats.InvalidateCount)
	assert.Equal(t, int64(1), stats.InvalidateStale)
}

func TestClientClosed(t *testing.T) {
	client, _ := newTestClient(t)
	require.NoError(t, client.Close())
	require.NoError(t, client.Close(), "double close is fine")

	_, err := client.Query(context.Background(), keyset.New(), func(ctx context.Context) (cache.Entry, error) {
		return cache.Entry{}, nil
	})
	assert.ErrorIs(t, err, ErrClosed)

	_, err = client.Execute(context.Background(), mutation.Mutation{
		Name:  "noop",
		Write: func(ctx context.Context, s remote.Store) (mutation.Result, error) { return mutation.Result{}, nil },
	})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestClientWithInjectedCache(t *testing.T) {
	pre := cache.NewMemory()
	keys := keyset.NewBuilder("user")
	key := keys.Detail("u1")
	pre.Set(key, cache.RecordEntry(record.Record{"id": record.String("u1")}))

	client, err := New(remote.NewMemory(), WithCache(pre))
	require.NoError(t, err)
	defer client.Close()

	entry, err := client.Query(context.Background(), key, func(ctx context.Context) (cache.Entry, error) {
		t.Fatal("fetch must not run for a warm fresh entry")
		return cache.Entry{}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "u1", entry.Record.ID())
}
