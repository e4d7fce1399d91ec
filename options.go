package qsync

import (
	"log/slog"

	"github.com/hupe1980/qsync/cache"
)

type options struct {
	cache            cache.Store
	refetchFunc      cache.RefetchFunc
	refetchOptFns    []func(o *cache.RefetcherOptions)
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures Client constructor behavior.
type Option func(*options)

// WithCache configures the cache backing the client.
//
// If nil is passed (or the option is omitted), a fresh in-memory cache
// is used. Pass a pre-populated cache to resume from a snapshot.
func WithCache(c cache.Store) Option {
	return func(o *options) {
		o.cache = c
	}
}

// WithRefetch configures background refetching for invalidated prefixes.
// fetch is called for each stale key; the result replaces the stale
// entry. Without this option, invalidated entries stay stale until the
// next Query on their key.
//
// Example:
//
//	client, _ := qsync.New(store,
//	    qsync.WithRefetch(fetchEntry, func(o *cache.RefetcherOptions) {
//	        o.MaxConcurrent = 2
//	        o.RatePerSec = 10
//	    }),
//	)
func WithRefetch(fetch cache.RefetchFunc, optFns ...func(o *cache.RefetcherOptions)) Option {
	return func(o *options) {
		o.refetchFunc = fetch
		o.refetchOptFns = optFns
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &qsync.BasicMetricsCollector{}
//	client, _ := qsync.New(store, qsync.WithMetricsCollector(metrics))
//	// ... use client ...
//	stats := metrics.GetStats()
//	fmt.Printf("Mutations: %d, Avg latency: %dns\n", stats.MutationCount, stats.MutationAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := qsync.NewJSONLogger(slog.LevelInfo)
//	client, _ := qsync.New(store, qsync.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.cache == nil {
		o.cache = cache.NewMemory()
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}
