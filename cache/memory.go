package cache

import (
	"sync"

	"github.com/hupe1980/qsync/keyset"
)

// EventKind identifies what happened to a cached key.
type EventKind uint8

const (
	// EventSet fires when an entry is written or rewritten.
	EventSet EventKind = iota
	// EventRemove fires when an entry is evicted.
	EventRemove
	// EventInvalidate fires when an entry is marked stale.
	EventInvalidate
)

// Event describes one change to the cache.
type Event struct {
	Kind EventKind
	Key  keyset.Key
}

// Memory is an in-memory Store backed by a map keyed by the stable key
// encoding. It retains the structured key alongside each entry so that
// predicate scans and prefix invalidation can match on key structure.
type Memory struct {
	mu    sync.Mutex
	items map[string]*memItem

	refetch func(keyset.Key)

	subMu   sync.Mutex
	subs    map[int]*subscription
	nextSub int
}

type memItem struct {
	key   keyset.Key
	entry Entry
	stale bool
}

type subscription struct {
	prefix keyset.Key
	fn     func(Event)
}

// Compile-time interface check.
var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{
		items: make(map[string]*memItem),
		subs:  make(map[int]*subscription),
	}
}

// SetRefetchFunc attaches the background refetch trigger invoked for each
// key marked stale by Invalidate. The function is called on the caller's
// goroutine; attach a Refetcher to make it asynchronous.
func (m *Memory) SetRefetchFunc(fn func(keyset.Key)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refetch = fn
}

// Subscribe registers fn for change events on keys under prefix. The
// returned function cancels the subscription. Handlers run after the
// mutating call releases the cache lock and must not block.
func (m *Memory) Subscribe(prefix keyset.Key, fn func(Event)) (cancel func()) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	id := m.nextSub
	m.nextSub++
	m.subs[id] = &subscription{prefix: prefix, fn: fn}

	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		delete(m.subs, id)
	}
}

// Get returns a deep copy of the entry at key.
func (m *Memory) Get(key keyset.Key) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[key.Encode()]
	if !ok {
		return Entry{}, false
	}
	return it.entry.Clone(), true
}

// Set writes a deep copy of the entry at key and marks it fresh.
func (m *Memory) Set(key keyset.Key, e Entry) {
	m.mu.Lock()
	m.items[key.Encode()] = &memItem{key: key, entry: e.Clone()}
	m.mu.Unlock()

	m.notify(Event{Kind: EventSet, Key: key})
}

// Update rewrites the entry at key through fn. Absent keys are a no-op.
func (m *Memory) Update(key keyset.Key, fn func(old Entry) (Entry, bool)) {
	m.mu.Lock()
	it, ok := m.items[key.Encode()]
	if !ok {
		m.mu.Unlock()
		return
	}
	next, keep := fn(it.entry.Clone())
	if !keep {
		m.mu.Unlock()
		return
	}
	it.entry = next.Clone()
	it.stale = false
	m.mu.Unlock()

	m.notify(Event{Kind: EventSet, Key: key})
}

// Remove evicts the key entirely.
func (m *Memory) Remove(key keyset.Key) {
	enc := key.Encode()

	m.mu.Lock()
	_, ok := m.items[enc]
	if ok {
		delete(m.items, enc)
	}
	m.mu.Unlock()

	if ok {
		m.notify(Event{Kind: EventRemove, Key: key})
	}
}

// All returns deep copies of every cached pair whose key satisfies pred.
func (m *Memory) All(pred func(key keyset.Key) bool) []Keyed {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Keyed
	for _, it := range m.items {
		if pred(it.key) {
			out = append(out, Keyed{Key: it.key, Entry: it.entry.Clone()})
		}
	}
	return out
}

// Invalidate marks every key under prefix stale and hands the keys to the
// refetch trigger, if one is attached. Values stay readable until the
// refetch replaces them.
func (m *Memory) Invalidate(prefix keyset.Key) {
	m.mu.Lock()
	var marked []keyset.Key
	for _, it := range m.items {
		if it.key.HasPrefix(prefix) && !it.stale {
			it.stale = true
			marked = append(marked, it.key)
		}
	}
	refetch := m.refetch
	m.mu.Unlock()

	for _, k := range marked {
		if refetch != nil {
			refetch(k)
		}
		m.notify(Event{Kind: EventInvalidate, Key: k})
	}
}

// IsStale reports whether the key is cached and marked stale.
func (m *Memory) IsStale(key keyset.Key) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[key.Encode()]
	return ok && it.stale
}

// MarkStale marks a single cached key stale without triggering a refetch.
// Used by snapshot restore so warm-started entries refetch on first read.
func (m *Memory) MarkStale(key keyset.Key) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if it, ok := m.items[key.Encode()]; ok {
		it.stale = true
	}
}

// Len returns the number of cached keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Clear removes all entries without notifying subscribers.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[string]*memItem)
}

func (m *Memory) notify(ev Event) {
	m.subMu.Lock()
	var fns []func(Event)
	for _, s := range m.subs {
		if ev.Key.HasPrefix(s.prefix) {
			fns = append(fns, s.fn)
		}
	}
	m.subMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
