package record

import "strings"

// Operator identifies a filter comparison.
type Operator uint8

const (
	// OpEqual matches values that compare equal.
	OpEqual Operator = iota
	// OpNotEqual matches values that do not compare equal.
	OpNotEqual
	// OpGreaterThan matches numeric values strictly greater.
	OpGreaterThan
	// OpGreaterEqual matches numeric values greater or equal.
	OpGreaterEqual
	// OpLessThan matches numeric values strictly less.
	OpLessThan
	// OpLessEqual matches numeric values less or equal.
	OpLessEqual
	// OpIn matches values contained in an array filter value.
	OpIn
	// OpContains matches string values containing the filter string.
	OpContains
)

func (op Operator) String() string {
	switch op {
	case OpEqual:
		return "eq"
	case OpNotEqual:
		return "neq"
	case OpGreaterThan:
		return "gt"
	case OpGreaterEqual:
		return "gte"
	case OpLessThan:
		return "lt"
	case OpLessEqual:
		return "lte"
	case OpIn:
		return "in"
	case OpContains:
		return "contains"
	default:
		return "unknown"
	}
}

// Filter is a single condition over one record field.
type Filter struct {
	Field    string   `json:"field" msgpack:"field"`
	Operator Operator `json:"op" msgpack:"op"`
	Value    Value    `json:"value" msgpack:"value"`
}

// Eq returns an equality filter.
func Eq(field string, value Value) Filter {
	return Filter{Field: field, Operator: OpEqual, Value: value}
}

// Neq returns an inequality filter.
func Neq(field string, value Value) Filter {
	return Filter{Field: field, Operator: OpNotEqual, Value: value}
}

// Gt returns a greater-than filter.
func Gt(field string, value Value) Filter {
	return Filter{Field: field, Operator: OpGreaterThan, Value: value}
}

// Gte returns a greater-or-equal filter.
func Gte(field string, value Value) Filter {
	return Filter{Field: field, Operator: OpGreaterEqual, Value: value}
}

// Lt returns a less-than filter.
func Lt(field string, value Value) Filter {
	return Filter{Field: field, Operator: OpLessThan, Value: value}
}

// Lte returns a less-or-equal filter.
func Lte(field string, value Value) Filter {
	return Filter{Field: field, Operator: OpLessEqual, Value: value}
}

// In returns a membership filter. values becomes an array filter value.
func In(field string, values ...Value) Filter {
	return Filter{Field: field, Operator: OpIn, Value: Array(values...)}
}

// Contains returns a substring filter.
func Contains(field, substr string) Filter {
	return Filter{Field: field, Operator: OpContains, Value: String(substr)}
}

// Matches checks if the provided record matches this filter.
// A missing field never matches.
func (f Filter) Matches(r Record) bool {
	value, exists := r[f.Field]
	if !exists {
		return false
	}

	switch f.Operator {
	case OpEqual:
		return value.Equal(f.Value)
	case OpNotEqual:
		return !value.Equal(f.Value)
	case OpGreaterThan:
		return compareGreater(value, f.Value)
	case OpGreaterEqual:
		return compareGreater(value, f.Value) || value.Equal(f.Value)
	case OpLessThan:
		return compareLess(value, f.Value)
	case OpLessEqual:
		return compareLess(value, f.Value) || value.Equal(f.Value)
	case OpIn:
		return compareIn(value, f.Value)
	case OpContains:
		return compareContains(value, f.Value)
	default:
		return false
	}
}

// Key returns a stable encoding of the filter for use in cache keys.
func (f Filter) Key() string {
	return f.Field + "\x1d" + f.Operator.String() + "\x1d" + f.Value.Key()
}

// FilterSet is a conjunction of filters (AND logic).
type FilterSet struct {
	Filters []Filter `json:"filters" msgpack:"filters"`
}

// Where builds a FilterSet from the given filters.
func Where(filters ...Filter) FilterSet {
	return FilterSet{Filters: filters}
}

// Matches checks if the provided record matches all filters in the set.
func (fs FilterSet) Matches(r Record) bool {
	for _, f := range fs.Filters {
		if !f.Matches(r) {
			return false
		}
	}
	return true
}

// Empty reports whether the set contains no filters.
func (fs FilterSet) Empty() bool { return len(fs.Filters) == 0 }

// Key returns a stable encoding of the set for use in cache keys.
// Filter order is significant: builders must construct filters in a
// deterministic order for keys to be structurally equal.
func (fs FilterSet) Key() string {
	if len(fs.Filters) == 0 {
		return ""
	}
	parts := make([]string, len(fs.Filters))
	for i, f := range fs.Filters {
		parts[i] = f.Key()
	}
	return strings.Join(parts, "\x1e")
}

func compareGreater(a, b Value) bool {
	af, aok := a.AsFloat64()
	bf, bok := b.AsFloat64()
	if !aok || !bok {
		return false
	}
	return af > bf
}

func compareLess(a, b Value) bool {
	af, aok := a.AsFloat64()
	bf, bok := b.AsFloat64()
	if !aok || !bok {
		return false
	}
	return af < bf
}

func compareIn(a, b Value) bool {
	if b.Kind != KindArray {
		return false
	}
	for _, item := range b.A {
		if a.Equal(item) {
			return true
		}
	}
	return false
}

func compareContains(a, b Value) bool {
	if a.Kind != KindString || b.Kind != KindString {
		return false
	}
	return strings.Contains(a.S, b.S)
}
