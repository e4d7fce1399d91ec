// Package collection provides the client-side search/sort pipeline for an
// already-fetched in-memory list.
//
// A View narrows its source list with fuzzy matching and orders the
// narrowed set with a selectable sort option. The pipeline is recomputed
// in dependency order — rebuild the matcher when the source changes,
// re-narrow when the query changes, re-sort last — so a stale intermediate
// result can never reintroduce filtered-out items.
package collection

import "sort"

// Order is a binary sort direction.
type Order int8

const (
	// Asc sorts ascending by the option's Less.
	Asc Order = iota
	// Desc sorts descending by the option's Less.
	Desc
)

// SortOption declares one sortable field.
type SortOption[T any] struct {
	// Name identifies the option; selecting it by name activates it.
	Name string

	// Less is the ascending comparison.
	Less func(a, b T) bool

	// Default is the direction used when the option is first activated.
	Default Order
}

// ViewOptions configure a View.
type ViewOptions struct {
	// Threshold is the minimum fuzzy score for an item to survive
	// narrowing. Defaults to 0.3.
	Threshold float64
}

// DefaultViewOptions are the defaults used by NewView.
var DefaultViewOptions = ViewOptions{
	Threshold: 0.3,
}

// View is the filter + fuzzy search + sort state over one source list.
// It is UI state: not safe for concurrent use.
type View[T any] struct {
	text  func(T) string
	sorts []SortOption[T]
	opts  ViewOptions

	source  []T
	matcher *Matcher

	query  string
	active string
	order  Order
}

// NewView creates a view. text extracts the searchable string from an
// item; sorts declares the selectable sort fields.
func NewView[T any](text func(T) string, sorts []SortOption[T], optFns ...func(o *ViewOptions)) *View[T] {
	opts := DefaultViewOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	return &View[T]{
		text:  text,
		sorts: sorts,
		opts:  opts,
	}
}

// SetSource replaces the source list and rebuilds the fuzzy matcher.
// Query and sort state are preserved.
func (v *View[T]) SetSource(items []T) {
	v.source = make([]T, len(items))
	copy(v.source, items)

	texts := make([]string, len(items))
	for i, it := range items {
		texts[i] = v.text(it)
	}
	v.matcher = NewMatcher(texts)
}

// SetQuery sets the search string narrowing the rendered set.
func (v *View[T]) SetQuery(query string) {
	v.query = query
}

// Sort activates the named sort option. Selecting the active option again
// flips the direction; selecting a different option resets to that
// option's declared default direction. Unknown names deactivate sorting.
func (v *View[T]) Sort(name string) {
	if name == v.active {
		if v.order == Asc {
			v.order = Desc
		} else {
			v.order = Asc
		}
		return
	}
	v.active = name
	if opt := v.sortOption(name); opt != nil {
		v.order = opt.Default
	}
}

// ActiveSort returns the active sort option name and direction.
func (v *View[T]) ActiveSort() (string, Order) {
	return v.active, v.order
}

// Items returns the narrowed, sorted view of the source list. The result
// is a fresh slice; the source is never reordered in place.
func (v *View[T]) Items() []T {
	narrowed := v.narrow()
	opt := v.sortOption(v.active)
	if opt == nil {
		return narrowed
	}

	less := opt.Less
	if v.order == Desc {
		asc := less
		less = func(a, b T) bool { return asc(b, a) }
	}
	sort.SliceStable(narrowed, func(i, j int) bool {
		return less(narrowed[i], narrowed[j])
	})
	return narrowed
}

func (v *View[T]) narrow() []T {
	out := make([]T, 0, len(v.source))
	for i, it := range v.source {
		if v.query == "" || v.matcher.Score(i, v.query) >= v.opts.Threshold {
			out = append(out, it)
		}
	}
	return out
}

func (v *View[T]) sortOption(name string) *SortOption[T] {
	for i := range v.sorts {
		if v.sorts[i].Name == name {
			return &v.sorts[i]
		}
	}
	return nil
}
