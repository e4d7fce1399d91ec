package collection

import "strings"

// Matcher scores items against a query string. It is built once per source
// list and queried for every keystroke, so construction does the heavy
// normalization and Score stays cheap.
type Matcher struct {
	texts  []string
	bigram [][]string
}

// NewMatcher builds a matcher over the given item texts.
func NewMatcher(texts []string) *Matcher {
	m := &Matcher{
		texts:  make([]string, len(texts)),
		bigram: make([][]string, len(texts)),
	}
	for i, t := range texts {
		norm := normalize(t)
		m.texts[i] = norm
		m.bigram[i] = bigrams(norm)
	}
	return m
}

// Len returns the number of indexed items.
func (m *Matcher) Len() int { return len(m.texts) }

// Score returns a relevance score in [0,1] for item i against query.
// Substring matches score 1. Otherwise the score is the bigram overlap
// (Dice coefficient) between the normalized query and the item text.
func (m *Matcher) Score(i int, query string) float64 {
	q := normalize(query)
	if q == "" {
		return 1
	}
	if strings.Contains(m.texts[i], q) {
		return 1
	}
	return dice(bigrams(q), m.bigram[i])
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func bigrams(s string) []string {
	if len(s) < 2 {
		if s == "" {
			return nil
		}
		return []string{s}
	}
	out := make([]string, 0, len(s)-1)
	for i := 0; i+2 <= len(s); i++ {
		out = append(out, s[i:i+2])
	}
	return out
}

func dice(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	counts := make(map[string]int, len(a))
	for _, g := range a {
		counts[g]++
	}
	overlap := 0
	for _, g := range b {
		if counts[g] > 0 {
			counts[g]--
			overlap++
		}
	}
	return 2 * float64(overlap) / float64(len(a)+len(b))
}
