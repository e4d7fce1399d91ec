package keyset

import (
	"testing"

	"github.com/hupe1980/qsync/record"
)

func TestKeyEqual(t *testing.T) {
	fs := record.Where(record.Eq("status", record.String("active")))

	tests := []struct {
		name string
		a    Key
		b    Key
		want bool
	}{
		{
			name: "same segments",
			a:    New(Str("user"), Str("u1")),
			b:    New(Str("user"), Str("u1")),
			want: true,
		},
		{
			name: "different length",
			a:    New(Str("user")),
			b:    New(Str("user"), Str("u1")),
			want: false,
		},
		{
			name: "different segment value",
			a:    New(Str("user"), Str("u1")),
			b:    New(Str("user"), Str("u2")),
			want: false,
		},
		{
			name: "int vs string segment",
			a:    New(Int(1)),
			b:    New(Str("1")),
			want: false,
		},
		{
			name: "equal filter segments",
			a:    New(Str("user"), Filters(fs)),
			b:    New(Str("user"), Filters(record.Where(record.Eq("status", record.String("active"))))),
			want: true,
		},
		{
			name: "zero keys",
			a:    Key{},
			b:    New(),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
			if (tt.a.Encode() == tt.b.Encode()) != tt.want {
				t.Errorf("Encode() equality = %v, want %v", !tt.want, tt.want)
			}
		})
	}
}

func TestKeyPrefix(t *testing.T) {
	root := New(Str("user"))
	detail := root.Append(Str("u1"))
	collection := detail.Append(Str("watchlist"))

	if !collection.HasPrefix(root) {
		t.Error("collection should have domain root as prefix")
	}
	if !collection.HasPrefix(collection) {
		t.Error("a key is a prefix of itself")
	}
	if !collection.HasPrefix(Key{}) {
		t.Error("the empty key is a prefix of every key")
	}
	if root.HasPrefix(collection) {
		t.Error("longer key cannot be a prefix of a shorter one")
	}

	if !root.IsStrictPrefixOf(detail) {
		t.Error("root should be a strict prefix of detail")
	}
	if detail.IsStrictPrefixOf(detail) {
		t.Error("a key is not a strict prefix of itself")
	}

	other := New(Str("group"), Str("u1"))
	if other.HasPrefix(root) {
		t.Error("unrelated domain must not share the prefix")
	}
}

func TestKeyImmutable(t *testing.T) {
	base := New(Str("user"), Str("u1"))
	a := base.Append(Str("watchlist"))
	b := base.Append(Str("favorites"))

	if base.Len() != 2 {
		t.Errorf("Append modified receiver: len = %d", base.Len())
	}
	if a.Segment(2).Str != "watchlist" || b.Segment(2).Str != "favorites" {
		t.Error("sibling keys appended from the same base interfered")
	}

	// Mutating the returned segment slice must not affect the key.
	segs := base.Segments()
	segs[0] = Str("mutated")
	if base.Segment(0).Str != "user" {
		t.Error("Segments() exposed internal storage")
	}
}
