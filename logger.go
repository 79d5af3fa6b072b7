package dcstore

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with dcstore-specific context.
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
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, nil))
}

// WithPath adds a path field to the logger.
func (l *Logger) WithPath(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("path", path),
	}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("count", count),
	}
}

// LogScan logs a scan of a store file.
func (l *Logger) LogScan(ctx context.Context, source string, nodes, selected int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "scan failed",
			"source", source,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "scan completed",
			"source", source,
			"nodes", nodes,
			"selected", selected,
		)
	}
}

// LogMaterialize logs a materialize operation.
func (l *Logger) LogMaterialize(ctx context.Context, source string, arrays int, preflight bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "materialize failed",
			"source", source,
			"preflight", preflight,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "materialize completed",
			"source", source,
			"arrays", arrays,
			"preflight", preflight,
		)
	}
}

// LogSave logs a save operation.
func (l *Logger) LogSave(ctx context.Context, target string, datasets int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "save failed",
			"target", target,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "save completed",
			"target", target,
			"datasets", datasets,
		)
	}
}

// LogRename logs the renames applied to a store or tree.
func (l *Logger) LogRename(ctx context.Context, applied, total int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "rename incomplete",
			"applied", applied,
			"total", total,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "rename completed",
			"applied", applied,
		)
	}
}
