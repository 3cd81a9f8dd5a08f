package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with reclaimer-specific helpers so every
// component logs the same field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler.
// If handler is nil, uses a text handler to stderr at info level.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSON creates a Logger writing JSON lines to w.
func NewJSON(w io.Writer, level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewText creates a Logger writing human-readable lines to w.
func NewText(w io.Writer, level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Noop discards everything. Tests use it.
func Noop() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// ParseLevel maps "debug", "info", "warn" and "error" to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(s))
	return l, err
}

// Component tags every record with the emitting component.
func (l *Logger) Component(name string) *Logger {
	return &Logger{Logger: l.Logger.With("component", name)}
}

// LogCycle logs the outcome of one reclamation cycle.
func (l *Logger) LogCycle(ctx context.Context, cycle uint64, freed, carried, misses int, took time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "cycle failed",
			"cycle", cycle,
			"carried", carried,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "cycle completed",
		"cycle", cycle,
		"freed", freed,
		"carried", carried,
		"misses", misses,
		"took", took,
	)
}

// LogThread logs a thread lifecycle event.
func (l *Logger) LogThread(ctx context.Context, event string, id uint64) {
	l.DebugContext(ctx, "thread "+event, "thread", id)
}

// LogStall logs a thread whose heartbeat has not moved.
func (l *Logger) LogStall(ctx context.Context, id uint64, missed int) {
	l.WarnContext(ctx, "thread stalled",
		"thread", id,
		"missed_cycles", missed,
	)
}

// LogPublish logs delivery of a journaled cycle report.
func (l *Logger) LogPublish(ctx context.Context, cycle uint64, err error) {
	if err != nil {
		l.WarnContext(ctx, "publish failed, will retry",
			"cycle", cycle,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "report published", "cycle", cycle)
}
