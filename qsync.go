package qsync

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/qsync/cache"
	"github.com/hupe1980/qsync/keyset"
	"github.com/hupe1980/qsync/mutation"
	"github.com/hupe1980/qsync/remote"
)

// FetchFunc loads the authoritative value for a cache key from the
// remote store. It is called on cache miss and on stale entries.
type FetchFunc func(ctx context.Context) (cache.Entry, error)

// Client coordinates cached reads and patch-reconciled writes against
// a remote store. All methods are safe for concurrent use.
type Client struct {
	remote    remote.Store
	cache     cache.Store
	exec      *mutation.Executor
	refetcher *cache.Refetcher

	metricsCollector MetricsCollector
	logger           *Logger

	group  singleflight.Group
	closed atomic.Bool
}

// New creates a Client over the given remote store.
func New(store remote.Store, optFns ...Option) (*Client, error) {
	o := applyOptions(optFns)

	exec, err := mutation.NewExecutor(store, o.cache)
	if err != nil {
		return nil, err
	}

	c := &Client{
		remote:           store,
		cache:            o.cache,
		exec:             exec,
		metricsCollector: o.metricsCollector,
		logger:           o.logger,
	}

	if o.refetchFunc != nil {
		fetch := o.refetchFunc
		c.refetcher = cache.NewRefetcher(o.cache, func(ctx context.Context, key keyset.Key) (cache.Entry, error) {
			start := time.Now()
			entry, err := fetch(ctx, key)
			c.metricsCollector.RecordRefetch(time.Since(start), err)
			c.logger.LogRefetch(ctx, key.Encode(), err)
			return entry, err
		}, o.refetchOptFns...)
		if m, ok := o.cache.(*cache.Memory); ok {
			c.refetcher.Attach(m)
		}
	}

	return c, nil
}

// Cache returns the cache backing the client, for snapshotting and
// subscriptions.
func (c *Client) Cache() cache.Store {
	return c.cache
}

// Execute performs the mutation's remote write and, on success, applies
// its cache patches in order. On write failure the cache is untouched
// and the error is returned; no retry happens at this layer.
func (c *Client) Execute(ctx context.Context, m mutation.Mutation) (mutation.Result, error) {
	if c.closed.Load() {
		return mutation.Result{}, ErrClosed
	}
	if m.Write == nil {
		return mutation.Result{}, &ErrMutationInvalid{Name: m.Name}
	}

	start := time.Now()
	res, err := c.exec.Execute(ctx, m)
	c.metricsCollector.RecordMutation(m.Name, res.AppliedPatches(), time.Since(start), err)
	c.logger.LogMutation(ctx, m.Name, res.AppliedPatches(), err)
	if err != nil {
		return res, translateError(err)
	}
	return res, nil
}

// Query returns the cached entry for key, fetching through fetch on a
// miss or a stale entry. Concurrent queries for the same key share a
// single fetch.
func (c *Client) Query(ctx context.Context, key keyset.Key, fetch FetchFunc) (cache.Entry, error) {
	if c.closed.Load() {
		return cache.Entry{}, ErrClosed
	}

	start := time.Now()
	if entry, ok := c.cache.Get(key); ok && !c.cache.IsStale(key) {
		c.metricsCollector.RecordQuery(true, time.Since(start), nil)
		c.logger.LogQuery(ctx, key.Encode(), true, nil)
		return entry, nil
	}

	v, err, _ := c.group.Do(key.Encode(), func() (any, error) {
		entry, err := fetch(ctx)
		if err != nil {
			return cache.Entry{}, err
		}
		c.cache.Set(key, entry)
		return entry, nil
	})
	c.metricsCollector.RecordQuery(false, time.Since(start), err)
	c.logger.LogQuery(ctx, key.Encode(), false, err)
	if err != nil {
		return cache.Entry{}, translateError(err)
	}
	return v.(cache.Entry), nil
}

// Invalidate marks every cached entry under prefix stale. When a
// refetcher is configured, stale entries are reloaded in the background.
func (c *Client) Invalidate(ctx context.Context, prefix keyset.Key) {
	if c.closed.Load() {
		return
	}
	stale := len(c.cache.All(func(key keyset.Key) bool {
		return key.HasPrefix(prefix)
	}))
	c.cache.Invalidate(prefix)
	c.metricsCollector.RecordInvalidate(stale)
	c.logger.LogInvalidate(ctx, prefix.Encode(), stale)
}

// Close releases background resources. The cache itself is left intact
// so it can still be snapshotted after close.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.refetcher != nil {
		return c.refetcher.Close()
	}
	return nil
}
