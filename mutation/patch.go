package mutation

import (
	"github.com/hupe1980/qsync/cache"
	"github.com/hupe1980/qsync/keyset"
	"github.com/hupe1980/qsync/record"
)

// Patch is a single cache-mutating operation applied after a successful
// remote write. Every patch treats "target not cached" as a no-op: patches
// reconcile existing views, they never create new ones.
type Patch interface {
	// Apply performs the patch against the store.
	Apply(store cache.Store)
}

// Compile-time interface checks.
var (
	_ Patch = Replace{}
	_ Patch = ClearRecord{}
	_ Patch = Evict{}
	_ Patch = BulkRemove{}
	_ Patch = BulkUpsert{}
	_ Patch = Invalidate{}
)

// Replace point-writes the entry at Key. This is the primary detail-key
// patch after insert/update mutations. Like every patch it only rewrites
// keys that are already cached; views that were never fetched are seeded
// by the read path, not by patches.
type Replace struct {
	Key   keyset.Key
	Entry cache.Entry
}

// Apply implements Patch.
func (p Replace) Apply(store cache.Store) {
	store.Update(p.Key, func(cache.Entry) (cache.Entry, bool) {
		return p.Entry, true
	})
}

// ClearRecord point-writes the explicit "known absent" entry at Key, used
// after a delete when the entity's detail key should report non-existence
// without refetching. It only rewrites keys that are already cached.
type ClearRecord struct {
	Key keyset.Key
}

// Apply implements Patch.
func (p ClearRecord) Apply(store cache.Store) {
	store.Update(p.Key, func(cache.Entry) (cache.Entry, bool) {
		return cache.AbsentEntry(), true
	})
}

// Evict removes the entry at Key entirely.
type Evict struct {
	Key keyset.Key
}

// Apply implements Patch.
func (p Evict) Apply(store cache.Store) {
	store.Remove(p.Key)
}

// BulkRemove scans every cached collection whose key starts with Prefix
// and removes the records matching Match from each, leaving non-matching
// records and non-collection entries untouched.
type BulkRemove struct {
	Prefix keyset.Key
	Match  func(record.Record) bool
}

// Apply implements Patch.
func (p BulkRemove) Apply(store cache.Store) {
	for _, kv := range store.All(func(k keyset.Key) bool { return k.HasPrefix(p.Prefix) }) {
		if !kv.Entry.IsCollection() {
			continue
		}
		store.Update(kv.Key, func(old cache.Entry) (cache.Entry, bool) {
			if !old.IsCollection() {
				return old, false
			}
			return old.MapRecords(func(r record.Record) record.Record {
				if p.Match(r) {
					return nil
				}
				return r
			}), true
		})
	}
}

// BulkRemoveID returns a BulkRemove matching records by id.
func BulkRemoveID(prefix keyset.Key, id string) BulkRemove {
	return BulkRemove{
		Prefix: prefix,
		Match:  func(r record.Record) bool { return r.ID() == id },
	}
}

// BulkUpsert replaces-or-appends Record (matched by id) in every cached
// collection whose key starts with Prefix. This is the direct-patch
// strategy for membership changes where the new member's full data is
// already known; use Invalidate when it is not.
type BulkUpsert struct {
	Prefix keyset.Key
	Record record.Record
}

// Apply implements Patch.
func (p BulkUpsert) Apply(store cache.Store) {
	id := p.Record.ID()
	for _, kv := range store.All(func(k keyset.Key) bool { return k.HasPrefix(p.Prefix) }) {
		if !kv.Entry.IsCollection() {
			continue
		}
		store.Update(kv.Key, func(old cache.Entry) (cache.Entry, bool) {
			if !old.IsCollection() {
				return old, false
			}
			if old.ContainsID(id) {
				return old.MapRecords(func(r record.Record) record.Record {
					if r.ID() == id {
						return p.Record.Clone()
					}
					return r
				}), true
			}
			switch old.Kind {
			case cache.EntryList:
				return cache.ListEntry(append(old.List, p.Record.Clone())), true
			case cache.EntryPages:
				if len(old.Pages) == 0 {
					return cache.PagesEntry([][]record.Record{{p.Record.Clone()}}), true
				}
				last := len(old.Pages) - 1
				old.Pages[last] = append(old.Pages[last], p.Record.Clone())
				return old, true
			}
			return old, false
		})
	}
}

// Invalidate marks every cached key under Prefix stale so the next read
// triggers a background refetch. Used when membership changed but the
// affected records' shapes are not locally available.
type Invalidate struct {
	Prefix keyset.Key
}

// Apply implements Patch.
func (p Invalidate) Apply(store cache.Store) {
	store.Invalidate(p.Prefix)
}
