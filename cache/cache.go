// Package cache provides the keyed query cache consumed by the mutation
// executor.
//
// The cache holds previously fetched results addressed by structured keys
// (see keyset). It supports point reads and writes, predicate-based bulk
// lookup, and prefix invalidation that marks entries stale and hands them
// to an optional background refetcher. Entries never expire inside this
// layer; staleness policy belongs to the embedding application.
package cache

import "github.com/hupe1980/qsync/keyset"

// Keyed pairs a structured key with its cached entry.
type Keyed struct {
	Key   keyset.Key
	Entry Entry
}

// Store is the consumed contract of the query cache. Implementations must
// be safe for concurrent use.
//
// All mutating operations treat "entry not found" as a no-op rather than an
// error: a patch against a key that is not currently cached does nothing
// and creates nothing.
type Store interface {
	// Get returns the entry at key. ok=false if the key is not cached.
	Get(key keyset.Key) (Entry, bool)

	// Set writes the entry at key, creating it if absent, and marks the
	// key fresh.
	Set(key keyset.Key, e Entry)

	// Update rewrites the entry at key through fn. If the key is not
	// cached, fn is not called and nothing changes. fn returns the new
	// entry and whether to keep it; keep=false leaves the old entry
	// untouched.
	Update(key keyset.Key, fn func(old Entry) (Entry, bool))

	// Remove evicts the key entirely. Removing an absent key is a no-op.
	Remove(key keyset.Key)

	// All returns every cached (key, entry) pair whose key satisfies the
	// predicate. The returned entries are deep copies.
	All(pred func(key keyset.Key) bool) []Keyed

	// Invalidate marks every key sharing the prefix as stale and triggers
	// a background refetch if a refetcher is attached. The cached values
	// remain readable until replaced.
	Invalidate(prefix keyset.Key)

	// IsStale reports whether the key is cached but marked stale.
	IsStale(key keyset.Key) bool

	// Len returns the number of cached keys.
	Len() int

	// Clear removes all entries.
	Clear()
}
