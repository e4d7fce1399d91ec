// Package record provides typed field values, records, and filters.
//
// Records are the unit of data exchanged with the remote store and held in
// the query cache. Filters express predicates over records; they power bulk
// cache patches ("remove every row matching X from every cached list") and
// double as canonical cache-key segments, so the same filter applied to the
// same collection always addresses the same cached result.
package record

import "sort"

// Record is a single row of remote data, keyed by field name.
type Record map[string]Value

// New returns an empty Record.
func New() Record { return Record{} }

// ID returns the string form of the record's "id" field, or empty string
// if the record has no string or integer id.
func (r Record) ID() string {
	v, ok := r["id"]
	if !ok {
		return ""
	}
	switch v.Kind {
	case KindString:
		return v.S
	case KindInt:
		return v.Key()[2:]
	default:
		return ""
	}
}

// Get returns the value for field, and whether it is present.
func (r Record) Get(field string) (Value, bool) {
	v, ok := r[field]
	return v, ok
}

// With returns a copy of the record with field set to value.
func (r Record) With(field string, value Value) Record {
	out := r.Clone()
	out[field] = value
	return out
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v.Clone()
	}
	return out
}

// Equal compares two records field by field.
func (r Record) Equal(other Record) bool {
	if len(r) != len(other) {
		return false
	}
	for k, v := range r {
		ov, ok := other[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Fields returns the record's field names in sorted order.
func (r Record) Fields() []string {
	fields := make([]string, 0, len(r))
	for k := range r {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}
