package anneal

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LevelTrace is a level below Debug for per-step chain output.
const LevelTrace = slog.LevelDebug - 4

// ParseLevel maps "trace", "debug", "info", "warn" or "error"
// (case-insensitive) to a slog.Level. Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger wraps slog.Logger with clustering-specific context.
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

// NewJSONLogger creates a Logger that outputs JSON-formatted logs to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return NewJSONLoggerTo(os.Stderr, level)
}

// NewJSONLoggerTo is NewJSONLogger writing to w.
func NewJSONLoggerTo(w io.Writer, level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(w, handlerOptions(level)))
}

// NewTextLogger creates a Logger that outputs human-readable text logs to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return NewTextLoggerTo(os.Stderr, level)
}

// NewTextLoggerTo is NewTextLogger writing to w.
func NewTextLoggerTo(w io.Writer, level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(w, handlerOptions(level)))
}

func handlerOptions(level slog.Level) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithK adds a k (cluster count) field to the logger.
func (l *Logger) WithK(k int) *Logger {
	return &Logger{
		Logger: l.Logger.With("k", k),
	}
}

// WithSeed adds a seed field to the logger.
func (l *Logger) WithSeed(seed uint64) *Logger {
	return &Logger{
		Logger: l.Logger.With("seed", seed),
	}
}

// LogNormalize logs the row normalization.
func (l *Logger) LogNormalize(ctx context.Context, rows, degenerate int, err error) {
	switch {
	case err != nil:
		l.ErrorContext(ctx, "normalize failed",
			"rows", rows,
			"error", err,
		)
	case degenerate > 0:
		l.WarnContext(ctx, "rows with zero range",
			"rows", rows,
			"degenerate", degenerate,
		)
	default:
		l.DebugContext(ctx, "normalize completed",
			"rows", rows,
		)
	}
}

// LogBuild logs the distance store build.
func (l *Logger) LogBuild(ctx context.Context, rows, pairs int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "distance build failed",
			"rows", rows,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "distance build completed",
			"rows", rows,
			"pairs", pairs,
			"duration", duration,
		)
	}
}

// LogCache logs a distance cache lookup or write. op is "hit", "miss",
// "store" or "invalid".
func (l *Logger) LogCache(ctx context.Context, op, name string, err error) {
	if err != nil {
		l.WarnContext(ctx, "distance cache "+op+" failed",
			"name", name,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "distance cache "+op,
			"name", name,
		)
	}
}

// LogRun logs the end of an annealing run.
func (l *Logger) LogRun(ctx context.Context, res *Result, err error) {
	if res == nil {
		l.ErrorContext(ctx, "run failed", "error", err)
		return
	}
	attrs := []any{
		"iterations", res.Iterations,
		"accepted", res.Accepted,
		"rejected", res.Rejected,
		"energy", res.Energy,
		"temperature", res.Temperature,
		"duration", res.Duration,
	}
	if err != nil {
		l.WarnContext(ctx, "run interrupted", append(attrs, "error", err)...)
	} else {
		l.InfoContext(ctx, "run completed", attrs...)
	}
}
