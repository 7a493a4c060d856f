// Package prommetrics exports cache metrics to Prometheus.
//
// A Collector implements statecache.MetricsCollector and prometheus.Collector,
// so the same value is handed to the cache and registered with a registry:
//
//	reg := prometheus.NewRegistry()
//	mc := prommetrics.New("robots")
//	reg.MustRegister(mc)
//	c := statecache.New[Robot](statecache.WithMetricsCollector(mc))
package prommetrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/statecache"
)

const namespace = "statecache"

// Rejection reasons used as the "reason" label.
const (
	ReasonConstraint    = "constraint"
	ReasonNotFound      = "not_found"
	ReasonAlreadyExists = "already_exists"
	ReasonStale         = "stale"
	ReasonInvalid       = "invalid"
	ReasonDerivation    = "derivation"
	ReasonOther         = "other"
)

// Collector records cache operations as Prometheus metrics.
type Collector struct {
	commits    *prometheus.CounterVec
	changes    *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	rejections *prometheus.CounterVec
	indexes    *prometheus.CounterVec
	batchSize  prometheus.Histogram
}

var (
	_ statecache.MetricsCollector = (*Collector)(nil)
	_ prometheus.Collector        = (*Collector)(nil)
)

// New creates a collector whose metrics carry a constant "cache" label.
func New(cache string) *Collector {
	labels := prometheus.Labels{"cache": cache}
	return &Collector{
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "commits_total",
			Help:        "Committed batches by operation.",
			ConstLabels: labels,
		}, []string{"op"}),
		changes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "changes_total",
			Help:        "Committed changes by operation.",
			ConstLabels: labels,
		}, []string{"op"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "commit_duration_seconds",
			Help:        "Time spent validating and applying a batch.",
			Buckets:     prometheus.ExponentialBuckets(1e-6, 4, 10),
			ConstLabels: labels,
		}, []string{"op"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "rejections_total",
			Help:        "Rejected batches by operation and reason.",
			ConstLabels: labels,
		}, []string{"op", "reason"}),
		indexes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "indexes_registered_total",
			Help:        "Registered indexes by kind.",
			ConstLabels: labels,
		}, []string{"kind"}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "batch_size",
			Help:        "Number of changes per committed batch.",
			Buckets:     prometheus.ExponentialBuckets(1, 2, 12),
			ConstLabels: labels,
		}),
	}
}

// RecordCommit implements statecache.MetricsCollector.
func (c *Collector) RecordCommit(op string, changes int, duration time.Duration) {
	c.commits.WithLabelValues(op).Inc()
	c.changes.WithLabelValues(op).Add(float64(changes))
	c.latency.WithLabelValues(op).Observe(duration.Seconds())
	c.batchSize.Observe(float64(changes))
}

// RecordRejection implements statecache.MetricsCollector.
func (c *Collector) RecordRejection(op string, err error) {
	c.rejections.WithLabelValues(op, Reason(err)).Inc()
}

// RecordIndexRegistered implements statecache.MetricsCollector.
func (c *Collector) RecordIndexRegistered(kind string) {
	c.indexes.WithLabelValues(kind).Inc()
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.commits.Describe(ch)
	c.changes.Describe(ch)
	c.latency.Describe(ch)
	c.rejections.Describe(ch)
	c.indexes.Describe(ch)
	c.batchSize.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.commits.Collect(ch)
	c.changes.Collect(ch)
	c.latency.Collect(ch)
	c.rejections.Collect(ch)
	c.indexes.Collect(ch)
	c.batchSize.Collect(ch)
}

// Reason maps a rejection error to a low-cardinality label value.
func Reason(err error) string {
	switch {
	case errors.Is(err, statecache.ErrConstraintViolation):
		return ReasonConstraint
	case errors.Is(err, statecache.ErrDerivation):
		return ReasonDerivation
	case errors.Is(err, statecache.ErrNotFound):
		return ReasonNotFound
	case errors.Is(err, statecache.ErrAlreadyExists):
		return ReasonAlreadyExists
	case errors.Is(err, statecache.ErrStaleState):
		return ReasonStale
	case errors.Is(err, statecache.ErrInvalidID), errors.Is(err, statecache.ErrInvalidChange):
		return ReasonInvalid
	default:
		return ReasonOther
	}
}
