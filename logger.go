package statecache

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with cache-specific helpers.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithCache adds the cache name to the logger.
func (l *Logger) WithCache(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("cache", name),
	}
}

// WithIndex adds an index name field to the logger.
func (l *Logger) WithIndex(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("index", name),
	}
}

// LogCommit logs the outcome of a batch.
func (l *Logger) LogCommit(op string, changes, size int, err error) {
	if err != nil {
		l.Debug("batch rejected",
			"op", op,
			"changes", changes,
			"error", err,
		)
	} else {
		l.Debug("batch committed",
			"op", op,
			"changes", changes,
			"size", size,
		)
	}
}

// LogIndexRegistered logs the registration of an index. The index name is
// expected on the logger, see WithIndex.
func (l *Logger) LogIndexRegistered(kind string, backfilled int, err error) {
	if err != nil {
		l.Warn("index registration failed",
			"kind", kind,
			"error", err,
		)
	} else {
		l.Info("index registered",
			"kind", kind,
			"backfilled", backfilled,
		)
	}
}

// LogVerify logs a consistency check.
func (l *Logger) LogVerify(ctx context.Context, indexes int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "consistency check failed",
			"indexes", indexes,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "consistency check passed",
			"indexes", indexes,
		)
	}
}
