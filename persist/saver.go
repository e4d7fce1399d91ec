package persist

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/qsync/cache"
)

// SaverOptions configure background snapshotting.
type SaverOptions struct {
	// Interval between automatic saves. Defaults to 5 minutes if <= 0.
	Interval time.Duration

	// Name is the blob name written on each save. Defaults to
	// "cache.snapshot".
	Name string

	// Codec used for snapshot payloads. Defaults to persist.Default.
	Codec Codec

	// OnError is called when a save fails. If nil, failures are dropped;
	// the next tick tries again.
	OnError func(err error)
}

// Saver periodically snapshots a cache to one or more blob stores. All
// targets receive the same snapshot bytes; uploads run concurrently and a
// failure on one target does not stop the others.
type Saver struct {
	store   cache.Store
	targets []BlobStore
	opts    SaverOptions

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewSaver creates a background saver. Call Start to begin saving.
func NewSaver(store cache.Store, targets []BlobStore, optFns ...func(o *SaverOptions)) *Saver {
	opts := SaverOptions{
		Interval: 5 * time.Minute,
		Name:     "cache.snapshot",
		Codec:    Default,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Minute
	}
	if opts.Name == "" {
		opts.Name = "cache.snapshot"
	}
	if opts.Codec == nil {
		opts.Codec = Default
	}

	return &Saver{
		store:   store,
		targets: targets,
		opts:    opts,
		done:    make(chan struct{}),
	}
}

// Start launches the periodic save loop.
func (s *Saver) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.opts.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.SaveOnce(ctx); err != nil && s.opts.OnError != nil {
					s.opts.OnError(err)
				}
			}
		}
	}()
}

// SaveOnce snapshots the cache and uploads it to every target now.
func (s *Saver) SaveOnce(ctx context.Context) error {
	data, err := Snapshot(s.store, s.opts.Codec)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, t := range s.targets {
		g.Go(func() error {
			return t.Put(ctx, s.opts.Name, data)
		})
	}
	return g.Wait()
}

// Close stops the save loop. It does not perform a final save.
func (s *Saver) Close() error {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
			<-s.done
		} else {
			close(s.done)
		}
	})
	return nil
}
