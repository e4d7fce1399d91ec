package keyset

import "github.com/hupe1980/qsync/record"

// Builder deterministically maps logical resource identities to cache keys
// for one resource domain (e.g. "user"). All methods are pure and total:
// the builder never validates identity fields, callers guard preconditions.
//
// Hierarchy guarantee: All() is a strict prefix of Detail(), Detail() of
// Collection(), and Collection() without filters of Collection() with
// filters and of Item().
type Builder struct {
	domain string
}

// NewBuilder returns a Builder rooted at the given resource domain.
func NewBuilder(domain string) Builder {
	return Builder{domain: domain}
}

// All returns the root key for the whole resource domain.
func (b Builder) All() Key {
	return New(Str(b.domain))
}

// Detail returns the key for one owner's detail record.
func (b Builder) Detail(ownerID string) Key {
	return b.All().Append(Str(ownerID))
}

// Collection returns the key for one of the owner's collections. When
// filters are given, the unfiltered key is a strict prefix of the filtered
// one, so a prefix scan finds every filter variant of the collection.
func (b Builder) Collection(ownerID, kind string, filters ...record.FilterSet) Key {
	k := b.Detail(ownerID).Append(Str(kind))
	for _, fs := range filters {
		k = k.Append(Filters(fs))
	}
	return k
}

// Item returns the key for a single item within an owner's collection.
func (b Builder) Item(ownerID, kind, itemID string) Key {
	return b.Collection(ownerID, kind).Append(Str(itemID))
}
