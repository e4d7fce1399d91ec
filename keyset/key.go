// Package keyset provides hierarchical, immutable cache keys.
//
// A Key is an ordered sequence of segments (strings, integers, or filter
// sets). Keys form a hierarchy by prefixing: the key for a resource family
// is a strict prefix of the keys of its members, so a predicate scan over
// "every cached collection for this owner and kind, regardless of filters"
// is a prefix match. Structural equality of keys is the sole lookup
// mechanism of the query cache, so segment encodings must be stable.
package keyset

import (
	"strconv"
	"strings"

	"github.com/hupe1980/qsync/record"
)

// SegmentKind identifies the concrete type stored in a Segment.
type SegmentKind uint8

const (
	// SegmentString is a string segment.
	SegmentString SegmentKind = iota
	// SegmentInt is an integer segment.
	SegmentInt
	// SegmentFilters is a filter-set segment.
	SegmentFilters
)

// Segment is one element of a Key.
type Segment struct {
	Kind    SegmentKind      `json:"kind" msgpack:"kind"`
	Str     string           `json:"str,omitempty" msgpack:"str,omitempty"`
	Int     int64            `json:"int,omitempty" msgpack:"int,omitempty"`
	Filters record.FilterSet `json:"filters,omitempty" msgpack:"filters,omitempty"`
}

// Str returns a string segment.
func Str(s string) Segment { return Segment{Kind: SegmentString, Str: s} }

// Int returns an integer segment.
func Int(i int64) Segment { return Segment{Kind: SegmentInt, Int: i} }

// Filters returns a filter-set segment.
func Filters(fs record.FilterSet) Segment {
	return Segment{Kind: SegmentFilters, Filters: fs}
}

// Encode returns a stable encoding of the segment. Equal segments always
// produce equal encodings.
func (s Segment) Encode() string {
	switch s.Kind {
	case SegmentString:
		return "s:" + s.Str
	case SegmentInt:
		return "i:" + strconv.FormatInt(s.Int, 10)
	case SegmentFilters:
		return "q:" + s.Filters.Key()
	default:
		return ""
	}
}

// Equal reports whether two segments are structurally equal.
func (s Segment) Equal(other Segment) bool {
	return s.Kind == other.Kind && s.Encode() == other.Encode()
}

// Key is an ordered, immutable sequence of segments addressing one cached
// result. The zero Key is the empty key, a prefix of every key.
type Key struct {
	segs []Segment
}

// New constructs a Key from the given segments.
func New(segs ...Segment) Key {
	out := make([]Segment, len(segs))
	copy(out, segs)
	return Key{segs: out}
}

// Append returns a new Key with the given segments appended. The receiver
// is never modified.
func (k Key) Append(segs ...Segment) Key {
	out := make([]Segment, 0, len(k.segs)+len(segs))
	out = append(out, k.segs...)
	out = append(out, segs...)
	return Key{segs: out}
}

// Len returns the number of segments.
func (k Key) Len() int { return len(k.segs) }

// Segments returns a copy of the key's segments.
func (k Key) Segments() []Segment {
	out := make([]Segment, len(k.segs))
	copy(out, k.segs)
	return out
}

// Segment returns the i-th segment.
func (k Key) Segment(i int) Segment { return k.segs[i] }

// Equal reports whether two keys are structurally equal.
func (k Key) Equal(other Key) bool {
	if len(k.segs) != len(other.segs) {
		return false
	}
	for i := range k.segs {
		if !k.segs[i].Equal(other.segs[i]) {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix's segments are a (non-strict) prefix of
// the key's segments. Every key has itself and the empty key as prefixes.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix.segs) > len(k.segs) {
		return false
	}
	for i := range prefix.segs {
		if !k.segs[i].Equal(prefix.segs[i]) {
			return false
		}
	}
	return true
}

// IsStrictPrefixOf reports whether the key is a strict prefix of other.
func (k Key) IsStrictPrefixOf(other Key) bool {
	return len(k.segs) < len(other.segs) && other.HasPrefix(k)
}

// Encode returns a stable string encoding of the key, suitable as a map
// key. Equal keys always produce equal encodings.
func (k Key) Encode() string {
	parts := make([]string, len(k.segs))
	for i, s := range k.segs {
		parts[i] = s.Encode()
	}
	return strings.Join(parts, "\x1f")
}

// String returns a human-readable form for logs.
func (k Key) String() string {
	parts := make([]string, len(k.segs))
	for i, s := range k.segs {
		switch s.Kind {
		case SegmentString:
			parts[i] = s.Str
		case SegmentInt:
			parts[i] = strconv.FormatInt(s.Int, 10)
		case SegmentFilters:
			parts[i] = "{" + s.Filters.Key() + "}"
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}
