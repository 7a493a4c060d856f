package statecache

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; the
// metrics/prommetrics package provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordCommit is called after every committed batch.
	// op names the cache operation, changes is the batch size and duration
	// covers validation and apply.
	RecordCommit(op string, changes int, duration time.Duration)

	// RecordRejection is called when a batch fails a precondition or an index
	// constraint. Nothing was mutated.
	RecordRejection(op string, err error)

	// RecordIndexRegistered is called after an index was registered.
	RecordIndexRegistered(kind string)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordCommit(string, int, time.Duration) {}
func (NoopMetricsCollector) RecordRejection(string, error)           {}
func (NoopMetricsCollector) RecordIndexRegistered(string)            {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	CommitCount      atomic.Int64
	CommitChanges    atomic.Int64
	CommitTotalNanos atomic.Int64
	RejectCount      atomic.Int64
	ConstraintErrors atomic.Int64
	IndexCount       atomic.Int64
}

// RecordCommit implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCommit(_ string, changes int, duration time.Duration) {
	b.CommitCount.Add(1)
	b.CommitChanges.Add(int64(changes))
	b.CommitTotalNanos.Add(duration.Nanoseconds())
}

// RecordRejection implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRejection(_ string, err error) {
	b.RejectCount.Add(1)
	if IsConstraintViolation(err) {
		b.ConstraintErrors.Add(1)
	}
}

// RecordIndexRegistered implements MetricsCollector.
func (b *BasicMetricsCollector) RecordIndexRegistered(string) {
	b.IndexCount.Add(1)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		CommitCount:      b.CommitCount.Load(),
		CommitChanges:    b.CommitChanges.Load(),
		CommitAvgNanos:   b.getAvgCommitNanos(),
		RejectCount:      b.RejectCount.Load(),
		ConstraintErrors: b.ConstraintErrors.Load(),
		IndexCount:       b.IndexCount.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgCommitNanos() int64 {
	count := b.CommitCount.Load()
	if count == 0 {
		return 0
	}
	return b.CommitTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	CommitCount      int64
	CommitChanges    int64
	CommitAvgNanos   int64
	RejectCount      int64
	ConstraintErrors int64
	IndexCount       int64
}
