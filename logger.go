package qsync

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with qsync-specific context.
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
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithKey adds a cache key field to the logger.
func (l *Logger) WithKey(key string) *Logger {
	return &Logger{
		Logger: l.Logger.With("key", key),
	}
}

// WithMutation adds a mutation name field to the logger.
func (l *Logger) WithMutation(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("mutation", name),
	}
}

// LogMutation logs a mutation execution.
func (l *Logger) LogMutation(ctx context.Context, name string, patches int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "mutation failed",
			"mutation", name,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "mutation completed",
			"mutation", name,
			"patches", patches,
		)
	}
}

// LogQuery logs a cache read.
func (l *Logger) LogQuery(ctx context.Context, key string, hit bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "query failed",
			"key", key,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "query completed",
			"key", key,
			"hit", hit,
		)
	}
}

// LogInvalidate logs a prefix invalidation.
func (l *Logger) LogInvalidate(ctx context.Context, prefix string, removed int) {
	l.DebugContext(ctx, "invalidate completed",
		"prefix", prefix,
		"stale", removed,
	)
}

// LogRefetch logs a background refetch.
func (l *Logger) LogRefetch(ctx context.Context, key string, err error) {
	if err != nil {
		l.WarnContext(ctx, "refetch failed",
			"key", key,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "refetch completed",
			"key", key,
		)
	}
}

// LogSnapshot logs a cache snapshot save or restore.
func (l *Logger) LogSnapshot(ctx context.Context, name string, entries int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed",
			"name", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot completed",
			"name", name,
			"entries", entries,
		)
	}
}
