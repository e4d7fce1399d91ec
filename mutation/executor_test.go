package mutation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/qsync/cache"
	"github.com/hupe1980/qsync/keyset"
	"github.com/hupe1980/qsync/record"
	"github.com/hupe1980/qsync/remote"
)

func newFixture(t *testing.T) (*Executor, *remote.Memory, *cache.Memory) {
	t.Helper()
	store := remote.NewMemory()
	c := cache.NewMemory()
	exec, err := NewExecutor(store, c)
	require.NoError(t, err)
	return exec, store, c
}

func TestExecutorWriteThenPatches(t *testing.T) {
	exec, store, c := newFixture(t)
	keys := keyset.NewBuilder("user")

	// The detail view was read before and reported "not there yet".
	c.Set(keys.Item("u1", "watchlist", "a1"), cache.AbsentEntry())

	res, err := exec.Execute(context.Background(), Mutation{
		Name:      "activity-add",
		EntityKey: keys.Item("u1", "watchlist", "a1"),
		Write: func(ctx context.Context, s remote.Store) (Result, error) {
			row, err := s.Insert(ctx, "activities", newRecord("a1", "title", record.String("dune")))
			if err != nil {
				return Result{}, err
			}
			return Result{Record: row}, nil
		},
		Patches: func(res Result) []Patch {
			return []Patch{
				Replace{Key: keys.Item("u1", "watchlist", "a1"), Entry: cache.RecordEntry(res.Record)},
				BulkUpsert{Prefix: keys.Collection("u1", "watchlist"), Record: res.Record},
			}
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.AppliedPatches())
	assert.Equal(t, 1, store.Len("activities"))

	got, ok := c.Get(keys.Item("u1", "watchlist", "a1"))
	require.True(t, ok)
	assert.Equal(t, "a1", got.Record.ID())
}

func TestExecutorFailedWriteLeavesCacheUntouched(t *testing.T) {
	exec, store, c := newFixture(t)
	keys := keyset.NewBuilder("user")
	key := keys.Collection("u1", "watchlist")

	c.Set(key, cache.ListEntry([]record.Record{newRecord("a1")}))
	before := snapshotEntries(c)

	boom := errors.New("network down")
	store.FailNext = boom

	var patchesBuilt bool
	_, err := exec.Execute(context.Background(), Mutation{
		Name: "activity-add",
		Write: func(ctx context.Context, s remote.Store) (Result, error) {
			row, err := s.Insert(ctx, "activities", newRecord("a2"))
			if err != nil {
				return Result{}, err
			}
			return Result{Record: row}, nil
		},
		Patches: func(res Result) []Patch {
			patchesBuilt = true
			return []Patch{BulkUpsert{Prefix: key, Record: res.Record}}
		},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.False(t, patchesBuilt, "patches must not be built on write failure")

	after := snapshotEntries(c)
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("cache changed across failed write (-before +after):\n%s", diff)
	}
}

// snapshotEntries flattens the cache into a comparable form keyed by the
// stable key encoding.
func snapshotEntries(c cache.Store) map[string]cache.Entry {
	out := make(map[string]cache.Entry)
	for _, kv := range c.All(func(keyset.Key) bool { return true }) {
		out[kv.Key.Encode()] = kv.Entry
	}
	return out
}

func TestExecutorPatchOrder(t *testing.T) {
	exec, _, c := newFixture(t)
	keys := keyset.NewBuilder("user")
	key := keys.Item("u1", "watchlist", "a1")

	c.Set(key, cache.RecordEntry(newRecord("a1")))

	// Later patches observe earlier ones: the replace lands before the
	// clear, so the final state is the clear's.
	_, err := exec.Execute(context.Background(), Mutation{
		Name: "ordered",
		Write: func(ctx context.Context, s remote.Store) (Result, error) {
			return Result{Record: newRecord("a1")}, nil
		},
		Patches: func(res Result) []Patch {
			return []Patch{
				Replace{Key: key, Entry: cache.RecordEntry(res.Record)},
				ClearRecord{Key: key},
			}
		},
	})
	require.NoError(t, err)

	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, cache.EntryAbsent, got.Kind)
}

func TestExecutorRequiresWrite(t *testing.T) {
	exec, _, _ := newFixture(t)

	_, err := exec.Execute(context.Background(), Mutation{Name: "empty"})
	assert.Error(t, err)
}

func TestExecutorSerializesPerEntity(t *testing.T) {
	exec, _, c := newFixture(t)
	keys := keyset.NewBuilder("user")
	entity := keys.Item("u1", "watchlist", "a1")

	c.Set(entity, cache.RecordEntry(newRecord("a1")))

	var mu sync.Mutex
	var active, maxActive int

	const writers = 16
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := exec.Execute(context.Background(), Mutation{
				Name:      "progress-set",
				EntityKey: entity,
				Write: func(ctx context.Context, s remote.Store) (Result, error) {
					mu.Lock()
					active++
					if active > maxActive {
						maxActive = active
					}
					mu.Unlock()

					row := newRecord("a1", "progress", record.Int(int64(n)))

					mu.Lock()
					active--
					mu.Unlock()
					return Result{Record: row}, nil
				},
				Patches: func(res Result) []Patch {
					return []Patch{Replace{Key: entity, Entry: cache.RecordEntry(res.Record)}}
				},
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, maxActive, "writes to one entity must not overlap")

	got, ok := c.Get(entity)
	require.True(t, ok)
	_, hasProgress := got.Record["progress"]
	assert.True(t, hasProgress)
}

func TestExecutorMetaDrivesPatchChoice(t *testing.T) {
	exec, store, c := newFixture(t)
	keys := keyset.NewBuilder("user")
	liked := keys.Collection("u1", "favorites")
	detail := keys.Item("u1", "favorites", "a1")

	store.RegisterRPC("toggle_favorite", func(ctx context.Context, args record.Record) (record.Record, error) {
		return record.Record{
			"id":    args["id"],
			"liked": record.Bool(true),
		}, nil
	})

	c.Set(liked, cache.ListEntry(nil))
	c.Set(detail, cache.AbsentEntry())

	toggle := Mutation{
		Name:      "favorite-toggle",
		EntityKey: detail,
		Write: func(ctx context.Context, s remote.Store) (Result, error) {
			row, err := s.RPC(ctx, "toggle_favorite", record.Record{"id": record.String("a1")})
			if err != nil {
				return Result{}, err
			}
			return Result{
				Record: row,
				Meta:   map[string]record.Value{"liked": row["liked"]},
			}, nil
		},
		Patches: func(res Result) []Patch {
			if res.MetaBool("liked") {
				return []Patch{
					Replace{Key: detail, Entry: cache.RecordEntry(res.Record)},
					BulkUpsert{Prefix: liked, Record: res.Record},
				}
			}
			return []Patch{
				ClearRecord{Key: detail},
				BulkRemoveID(liked, res.Record.ID()),
			}
		},
	}

	res, err := exec.Execute(context.Background(), toggle)
	require.NoError(t, err)
	assert.True(t, res.MetaBool("liked"))

	got, _ := c.Get(liked)
	assert.True(t, got.ContainsID("a1"), "liked toggle appends directly, no refetch")
	assert.False(t, c.IsStale(liked))

	det, ok := c.Get(detail)
	require.True(t, ok)
	assert.Equal(t, cache.EntryRecord, det.Kind)
}
