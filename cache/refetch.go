package cache

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/hupe1980/qsync/keyset"
)

// RefetchFunc fetches fresh data for one invalidated key.
type RefetchFunc func(ctx context.Context, key keyset.Key) (Entry, error)

// RefetcherOptions configure the background refetch engine.
type RefetcherOptions struct {
	// MaxConcurrent caps concurrent refetches. Defaults to 4 if <= 0.
	MaxConcurrent int64

	// RatePerSec limits refetch starts per second. If 0, unlimited.
	RatePerSec float64

	// Burst is the rate limiter burst size. Defaults to 1 if <= 0.
	Burst int

	// OnError is called when a refetch fails. The stale entry stays
	// cached; there is no retry. If nil, failures are dropped.
	OnError func(key keyset.Key, err error)
}

// DefaultRefetcherOptions are the defaults used by NewRefetcher.
var DefaultRefetcherOptions = RefetcherOptions{
	MaxConcurrent: 4,
	Burst:         1,
}

// Refetcher turns invalidations into background refetches. Concurrent
// triggers for the same key are collapsed through singleflight, total
// concurrency is capped by a semaphore, and refetch starts can be rate
// limited.
type Refetcher struct {
	store Store
	fetch RefetchFunc
	opts  RefetcherOptions

	group   singleflight.Group
	sem     *semaphore.Weighted
	limiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc

	// mu orders Trigger's wg.Add against Close's wg.Wait.
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewRefetcher creates a refetch engine writing into store.
func NewRefetcher(store Store, fetch RefetchFunc, optFns ...func(o *RefetcherOptions)) *Refetcher {
	opts := DefaultRefetcherOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	r := &Refetcher{
		store:  store,
		fetch:  fetch,
		opts:   opts,
		sem:    semaphore.NewWeighted(opts.MaxConcurrent),
		ctx:    ctx,
		cancel: cancel,
	}
	if opts.RatePerSec > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.Burst)
	}
	return r
}

// Attach wires the refetcher into a Memory cache's invalidation path.
func (r *Refetcher) Attach(m *Memory) {
	m.SetRefetchFunc(r.Trigger)
}

// Trigger schedules a background refetch for key. Triggers for a key
// already in flight join the existing call instead of starting another.
func (r *Refetcher) Trigger(key keyset.Key) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()

		_, err, _ := r.group.Do(key.Encode(), func() (any, error) {
			if err := r.sem.Acquire(r.ctx, 1); err != nil {
				return nil, err
			}
			defer r.sem.Release(1)

			if r.limiter != nil {
				if err := r.limiter.Wait(r.ctx); err != nil {
					return nil, err
				}
			}

			entry, err := r.fetch(r.ctx, key)
			if err != nil {
				return nil, err
			}
			r.store.Set(key, entry)
			return nil, nil
		})
		if err != nil && r.ctx.Err() == nil && r.opts.OnError != nil {
			r.opts.OnError(key, err)
		}
	}()
}

// Wait blocks until all scheduled refetches have finished.
func (r *Refetcher) Wait() {
	r.wg.Wait()
}

// Close cancels in-flight refetches and waits for them to stop. Triggers
// arriving after Close has started are no-ops.
func (r *Refetcher) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
	return nil
}
