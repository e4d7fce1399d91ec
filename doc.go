// Package qsync keeps client-side query caches consistent with a remote
// data store.
//
// Qsync sits between application actions and a hosted backend. Reads go
// through a keyed query cache; writes go through a mutation executor that
// performs exactly one remote call and then applies an ordered list of
// cache patches, so every currently cached view reflects the write
// without a full refetch:
//
//   - Hierarchical cache keys with prefix semantics (keyset)
//   - Typed records and filters shared by keys, patches, and views (record)
//   - Keyed cache with staleness, subscriptions, background refetch (cache)
//   - Remote store boundary with in-memory, Postgres, REST backends (remote)
//   - Patch operations: point replace/clear/evict, bulk remove/upsert,
//     prefix invalidation (mutation)
//   - Fuzzy search and sort pipeline for fetched lists (collection)
//   - Cache snapshots over local/S3/MinIO blob stores (persist)
//
// # Quick Start
//
// Create a client over a remote store:
//
//	store := remote.NewMemory()
//	client, err := qsync.New(store,
//	    qsync.WithLogLevel(slog.LevelInfo),
//	)
//	if err != nil {
//	    panic(err)
//	}
//	defer client.Close()
//
// Read through the cache:
//
//	keys := keyset.NewBuilder("user")
//	watchlist := keys.Collection("u1", "watchlist")
//
//	entry, err := client.Query(ctx, watchlist, func(ctx context.Context) (cache.Entry, error) {
//	    rows, err := store.Select(ctx, "activities", record.Where(
//	        record.Eq("user_id", record.String("u1")),
//	    ))
//	    if err != nil {
//	        return cache.Entry{}, err
//	    }
//	    return cache.ListEntry(rows), nil
//	})
//
// Write with cache reconciliation:
//
//	res, err := client.Execute(ctx, mutation.Mutation{
//	    Name:      "activity-rate",
//	    EntityKey: keys.Item("u1", "watchlist", activityID),
//	    Write: func(ctx context.Context, store remote.Store) (mutation.Result, error) {
//	        row, err := store.Update(ctx, "activities",
//	            record.Where(record.Eq("id", record.String(activityID))),
//	            record.Record{"rating": record.Int(9)})
//	        if err != nil {
//	            return mutation.Result{}, err
//	        }
//	        return mutation.Result{Record: row}, nil
//	    },
//	    Patches: func(res mutation.Result) []mutation.Patch {
//	        return []mutation.Patch{
//	            mutation.Replace{Key: keys.Item("u1", "watchlist", activityID), Entry: cache.RecordEntry(res.Record)},
//	            mutation.BulkUpsert{Prefix: keys.Collection("u1", "watchlist"), Record: res.Record},
//	        }
//	    },
//	})
//
// A failed remote write leaves the cache untouched and surfaces the error
// to the caller; there is no automatic retry at this layer.
//
// # Patch Strategy
//
// When a mutation changes membership in a derived collection, prefer the
// direct patches (BulkUpsert, BulkRemove) whenever the mutation result
// carries the affected record in full. Use Invalidate only when membership
// changed but the record's shape is not locally available; the prefix is
// then marked stale and refetched in the background.
package qsync
