// Package logger provides structured logging utilities.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	ricectx "github.com/ricesearch/rice-facets/internal/pkg/context"
)

// Logger wraps slog.Logger with additional context.
type Logger struct {
	*slog.Logger
}

// New creates a new logger with the specified level and format.
func New(level, format string) *Logger {
	return NewWithWriter(os.Stdout, level, format)
}

// NewWithWriter creates a logger writing to w. The CLI logs to stderr so
// that command output on stdout stays parseable.
func NewWithWriter(w io.Writer, level, format string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return NewWithWriter(io.Discard, "error", "text")
}

// WithComponent returns a logger tagged with a component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger: l.With("component", component),
	}
}

// WithWidget returns a logger with widget context.
func (l *Logger) WithWidget(id string) *Logger {
	return &Logger{
		Logger: l.With("widget", id),
	}
}

// WithRequest returns a logger carrying a request sequence number.
func (l *Logger) WithRequest(seq uint64) *Logger {
	return &Logger{
		Logger: l.With("seq", seq),
	}
}

// WithContext returns a logger carrying the correlation id of ctx, if any.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	id := ricectx.CorrelationID(ctx)
	if id == "" {
		return l
	}
	return &Logger{
		Logger: l.With("correlation_id", id),
	}
}

// WithError returns a logger with error context.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{
		Logger: l.With("error", err.Error()),
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Default returns the default logger.
func Default() *Logger {
	return New("info", "text")
}
