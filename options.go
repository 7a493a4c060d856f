package statecache

import (
	"log/slog"
	"strconv"
)

type options struct {
	name             string
	metricsCollector MetricsCollector
	logger           *Logger
}

func defaultOptions() options {
	return options{
		name:             "cache",
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
}

// Option configures a Cache.
type Option func(*options)

// WithName sets the cache name used in logs and metrics labels.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &statecache.BasicMetricsCollector{}
//	c := statecache.New[Robot](statecache.WithMetricsCollector(metrics))
//	// ... use c ...
//	stats := metrics.GetStats()
//	fmt.Printf("Commits: %d, Rejected: %d\n", stats.CommitCount, stats.RejectCount)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := statecache.NewJSONLogger(slog.LevelDebug)
//	c := statecache.New[Robot](statecache.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
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

type indexOptions struct {
	name string
}

// IndexOption configures an index at registration.
type IndexOption func(*indexOptions)

// WithIndexName names the index in errors, logs and metrics.
func WithIndexName(name string) IndexOption {
	return func(o *indexOptions) {
		o.name = name
	}
}

func applyIndexOptions(kind string, seq int, opts []IndexOption) indexOptions {
	o := indexOptions{}
	for _, fn := range opts {
		fn(&o)
	}
	if o.name == "" {
		o.name = kind + "-" + strconv.Itoa(seq)
	}
	return o
}
