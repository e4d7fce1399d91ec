package qsync

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    mutationCounter prometheus.Counter
//	    queryHistogram  prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordMutation(name string, patches int, duration time.Duration, err error) {
//	    p.mutationCounter.Inc()
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordMutation is called after each mutation execution.
	// patches is the number of cache patches applied, duration is the
	// total time taken including the remote write, err is nil on success.
	RecordMutation(name string, patches int, duration time.Duration, err error)

	// RecordQuery is called after each cache read.
	// hit reports whether the entry was served from cache without a fetch.
	RecordQuery(hit bool, duration time.Duration, err error)

	// RecordInvalidate is called after each prefix invalidation.
	// stale is the number of entries marked stale.
	RecordInvalidate(stale int)

	// RecordRefetch is called after each background refetch.
	RecordRefetch(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordMutation(string, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordQuery(bool, time.Duration, error)           {}
func (NoopMetricsCollector) RecordInvalidate(int)                             {}
func (NoopMetricsCollector) RecordRefetch(time.Duration, error)               {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	MutationCount      atomic.Int64
	MutationErrors     atomic.Int64
	MutationTotalNanos atomic.Int64
	PatchesApplied     atomic.Int64
	QueryCount         atomic.Int64
	QueryHits          atomic.Int64
	QueryErrors        atomic.Int64
	QueryTotalNanos    atomic.Int64
	InvalidateCount    atomic.Int64
	InvalidateStale    atomic.Int64
	RefetchCount       atomic.Int64
	RefetchErrors      atomic.Int64
}

// RecordMutation implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMutation(name string, patches int, duration time.Duration, err error) {
	b.MutationCount.Add(1)
	b.MutationTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.MutationErrors.Add(1)
		return
	}
	b.PatchesApplied.Add(int64(patches))
}

// RecordQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuery(hit bool, duration time.Duration, err error) {
	b.QueryCount.Add(1)
	b.QueryTotalNanos.Add(duration.Nanoseconds())
	if hit {
		b.QueryHits.Add(1)
	}
	if err != nil {
		b.QueryErrors.Add(1)
	}
}

// RecordInvalidate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInvalidate(stale int) {
	b.InvalidateCount.Add(1)
	b.InvalidateStale.Add(int64(stale))
}

// RecordRefetch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRefetch(duration time.Duration, err error) {
	b.RefetchCount.Add(1)
	if err != nil {
		b.RefetchErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		MutationCount:    b.MutationCount.Load(),
		MutationErrors:   b.MutationErrors.Load(),
		MutationAvgNanos: b.getAvgMutationNanos(),
		PatchesApplied:   b.PatchesApplied.Load(),
		QueryCount:       b.QueryCount.Load(),
		QueryHits:        b.QueryHits.Load(),
		QueryErrors:      b.QueryErrors.Load(),
		QueryAvgNanos:    b.getAvgQueryNanos(),
		InvalidateCount:  b.InvalidateCount.Load(),
		InvalidateStale:  b.InvalidateStale.Load(),
		RefetchCount:     b.RefetchCount.Load(),
		RefetchErrors:    b.RefetchErrors.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgMutationNanos() int64 {
	count := b.MutationCount.Load()
	if count == 0 {
		return 0
	}
	return b.MutationTotalNanos.Load() / count
}

func (b *BasicMetricsCollector) getAvgQueryNanos() int64 {
	count := b.QueryCount.Load()
	if count == 0 {
		return 0
	}
	return b.QueryTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	MutationCount    int64
	MutationErrors   int64
	MutationAvgNanos int64
	PatchesApplied   int64
	QueryCount       int64
	QueryHits        int64
	QueryErrors      int64
	QueryAvgNanos    int64
	InvalidateCount  int64
	InvalidateStale  int64
	RefetchCount     int64
	RefetchErrors    int64
}
