package cache

import "github.com/hupe1980/qsync/record"

// EntryKind identifies the shape of a cached value.
type EntryKind uint8

const (
	// EntryInvalid represents an invalid entry.
	EntryInvalid EntryKind = iota
	// EntryRecord is a single resource record.
	EntryRecord
	// EntryAbsent is an explicit "known absent" marker (a cached null).
	EntryAbsent
	// EntryList is a flat collection of records.
	EntryList
	// EntryPages is a paginated collection (pages of record slices).
	EntryPages
)

// Entry is the value stored at a cache key: a single record, an explicit
// absence, or a collection. Entries are value types; the store deep-copies
// them on both read and write, so callers can never alias cache internals.
type Entry struct {
	Kind   EntryKind         `json:"kind" msgpack:"kind"`
	Record record.Record     `json:"record,omitempty" msgpack:"record,omitempty"`
	List   []record.Record   `json:"list,omitempty" msgpack:"list,omitempty"`
	Pages  [][]record.Record `json:"pages,omitempty" msgpack:"pages,omitempty"`
}

// RecordEntry returns an entry holding a single record.
func RecordEntry(r record.Record) Entry {
	return Entry{Kind: EntryRecord, Record: r}
}

// AbsentEntry returns the explicit "known absent" entry.
func AbsentEntry() Entry {
	return Entry{Kind: EntryAbsent}
}

// ListEntry returns an entry holding a flat collection.
func ListEntry(items []record.Record) Entry {
	return Entry{Kind: EntryList, List: items}
}

// PagesEntry returns an entry holding a paginated collection.
func PagesEntry(pages [][]record.Record) Entry {
	return Entry{Kind: EntryPages, Pages: pages}
}

// IsCollection reports whether the entry holds a list or paginated
// collection.
func (e Entry) IsCollection() bool {
	return e.Kind == EntryList || e.Kind == EntryPages
}

// Clone returns a deep copy of the entry.
func (e Entry) Clone() Entry {
	out := Entry{Kind: e.Kind}
	switch e.Kind {
	case EntryRecord:
		out.Record = e.Record.Clone()
	case EntryList:
		out.List = cloneList(e.List)
	case EntryPages:
		pages := make([][]record.Record, len(e.Pages))
		for i, p := range e.Pages {
			pages[i] = cloneList(p)
		}
		out.Pages = pages
	}
	return out
}

// Equal compares two entries structurally.
func (e Entry) Equal(other Entry) bool {
	if e.Kind != other.Kind {
		return false
	}
	switch e.Kind {
	case EntryRecord:
		return e.Record.Equal(other.Record)
	case EntryList:
		return equalList(e.List, other.List)
	case EntryPages:
		if len(e.Pages) != len(other.Pages) {
			return false
		}
		for i := range e.Pages {
			if !equalList(e.Pages[i], other.Pages[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// MapRecords applies fn to every record in a collection entry and returns
// the rewritten entry. Records for which fn returns nil are dropped.
// Non-collection entries are returned unchanged.
func (e Entry) MapRecords(fn func(record.Record) record.Record) Entry {
	switch e.Kind {
	case EntryList:
		return ListEntry(mapList(e.List, fn))
	case EntryPages:
		pages := make([][]record.Record, len(e.Pages))
		for i, p := range e.Pages {
			pages[i] = mapList(p, fn)
		}
		return PagesEntry(pages)
	default:
		return e
	}
}

// ContainsID reports whether a collection entry holds a record with the
// given id. Non-collection entries never contain ids.
func (e Entry) ContainsID(id string) bool {
	found := false
	e.eachRecord(func(r record.Record) {
		if r.ID() == id {
			found = true
		}
	})
	return found
}

func (e Entry) eachRecord(fn func(record.Record)) {
	switch e.Kind {
	case EntryList:
		for _, r := range e.List {
			fn(r)
		}
	case EntryPages:
		for _, p := range e.Pages {
			for _, r := range p {
				fn(r)
			}
		}
	}
}

func cloneList(items []record.Record) []record.Record {
	out := make([]record.Record, len(items))
	for i, r := range items {
		out[i] = r.Clone()
	}
	return out
}

func equalList(a, b []record.Record) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func mapList(items []record.Record, fn func(record.Record) record.Record) []record.Record {
	out := make([]record.Record, 0, len(items))
	for _, r := range items {
		if mapped := fn(r); mapped != nil {
			out = append(out, mapped)
		}
	}
	return out
}
