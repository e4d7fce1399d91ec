// Package mutation provides the executor that keeps cached views
// consistent with remote writes.
//
// Control flow per invocation: exactly one remote write, then — only on
// success — a deterministic, ordered list of cache patches reflecting the
// write's effect without a full refetch. A failed write performs zero
// cache mutation and surfaces the error unchanged; there is no retry.
//
// Mutations carrying an EntityKey are serialized per entity, so two rapid
// writes to the same logical entity apply their write+patch sequences in
// order instead of racing on their success callbacks.
package mutation

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/qsync/cache"
	"github.com/hupe1980/qsync/keyset"
	"github.com/hupe1980/qsync/record"
	"github.com/hupe1980/qsync/remote"
)

// Result is the authoritative outcome of a remote write. Meta carries
// transient shaping fields used only to choose patch branches (e.g.
// whether a "liked" flag changed); it is never written into the cache.
type Result struct {
	// Record is the canonical row returned by the remote store. Nil for
	// deletes whose row data is not needed by any patch.
	Record record.Record

	// Meta holds caller-only shaping fields, stripped before caching.
	Meta map[string]record.Value

	applied int
}

// MetaBool returns the named meta field as a bool, defaulting to false.
func (r Result) MetaBool(name string) bool {
	v, ok := r.Meta[name]
	return ok && v.Kind == record.KindBool && v.B
}

// AppliedPatches returns how many patches the executor applied for this
// result. Zero until Execute returns.
func (r Result) AppliedPatches() int { return r.applied }

// Mutation describes one remote write and the cache patches that reconcile
// it. Write must issue exactly one remote call. Patches is invoked only
// after Write succeeds and must return the patch list in application
// order: point replace of the primary detail key first, conditional
// side-effect patches second, bulk membership removal last.
type Mutation struct {
	// Name identifies the mutation in logs and metrics.
	Name string

	// EntityKey, when non-zero, serializes this mutation against others
	// sharing the same key.
	EntityKey keyset.Key

	// Write performs the remote write.
	Write func(ctx context.Context, store remote.Store) (Result, error)

	// Patches builds the ordered patch list from the write's result.
	// May be nil for fire-and-forget writes with no cached views.
	Patches func(res Result) []Patch
}

// Executor performs mutations against a remote store and reconciles a
// query cache. Safe for concurrent use.
type Executor struct {
	remote remote.Store
	cache  cache.Store

	mu     sync.Mutex
	locked map[string]*entityLock
}

type entityLock struct {
	mu   sync.Mutex
	refs int
}

// NewExecutor creates an executor writing to store and patching c.
func NewExecutor(store remote.Store, c cache.Store) (*Executor, error) {
	if store == nil {
		return nil, fmt.Errorf("mutation: remote store is nil")
	}
	if c == nil {
		return nil, fmt.Errorf("mutation: cache is nil")
	}
	return &Executor{
		remote: store,
		cache:  c,
		locked: make(map[string]*entityLock),
	}, nil
}

// Execute runs one mutation: remote write, then ordered patch application.
// On write failure the cache is untouched and the error is returned
// unchanged. Patches are applied synchronously before Execute returns.
func (e *Executor) Execute(ctx context.Context, m Mutation) (Result, error) {
	if m.Write == nil {
		return Result{}, fmt.Errorf("mutation %q: no write func", m.Name)
	}

	if m.EntityKey.Len() > 0 {
		unlock := e.lockEntity(m.EntityKey.Encode())
		defer unlock()
	}

	res, err := m.Write(ctx, e.remote)
	if err != nil {
		return Result{}, err
	}

	if m.Patches != nil {
		patches := m.Patches(res)
		for _, p := range patches {
			p.Apply(e.cache)
		}
		res.applied = len(patches)
	}

	return res, nil
}

// lockEntity acquires the per-entity lock, creating it on first use and
// dropping it once the last holder releases.
func (e *Executor) lockEntity(enc string) (unlock func()) {
	e.mu.Lock()
	l, ok := e.locked[enc]
	if !ok {
		l = &entityLock{}
		e.locked[enc] = l
	}
	l.refs++
	e.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		e.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(e.locked, enc)
		}
		e.mu.Unlock()
	}
}
