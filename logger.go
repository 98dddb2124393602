package gridtree

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with gridtree-specific context.
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
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithQueryID adds a query id field to the logger.
func (l *Logger) WithQueryID(id uint64) *Logger {
	return &Logger{
		Logger: l.Logger.With("query_id", id),
	}
}

// WithIndex adds an index name field to the logger.
func (l *Logger) WithIndex(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("index", name),
	}
}

// LogRebuild logs the outcome of an index rebuild.
func (l *Logger) LogRebuild(ctx context.Context, rows int, err error) {
	if err != nil {
		l.WarnContext(ctx, "rebuild aborted",
			"rows", rows,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "rebuild completed",
			"rows", rows,
		)
	}
}

// LogSnapshot logs a snapshot capture.
func (l *Logger) LogSnapshot(ctx context.Context, rows int) {
	l.DebugContext(ctx, "snapshot taken",
		"rows", rows,
	)
}
