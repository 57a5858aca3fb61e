package bench

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"

	rp "github.com/takanoriyanagitani/go-rowdump2parquet"
	cl "github.com/takanoriyanagitani/go-rowdump2parquet/clean"
	ms "github.com/takanoriyanagitani/go-rowdump2parquet/measure"
)

// Logger wraps slog.Logger with the field names used by the harness.
type Logger struct {
	*slog.Logger
}

func NewLogger(handler slog.Handler) *Logger {
	if nil == handler {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewLoggerFor builds a text or json logger writing to w.
func NewLoggerFor(w io.Writer, format string, level slog.Level) *Logger {
	var opts *slog.HandlerOptions = &slog.HandlerOptions{Level: level}
	if "json" == format {
		return NewLogger(slog.NewJSONHandler(w, opts))
	}
	return NewLogger(slog.NewTextHandler(w, opts))
}

func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, nil))
}

func (l *Logger) WithRun(id string) *Logger {
	return &Logger{Logger: l.Logger.With("run", id)}
}

func (l *Logger) WithDataset(name string) *Logger {
	return &Logger{Logger: l.Logger.With("dataset", name)}
}

func (l *Logger) LogMeasurement(ctx context.Context, m rp.Measurement) {
	var attrs []any = []any{
		"operation", m.Operation,
		"elapsed", m.Elapsed,
		"memory_delta_mb", m.MemoryDeltaMB,
	}
	if m.HasSize {
		attrs = append(attrs, "size", humanize.IBytes(uint64(m.SizeMB*ms.BytesPerMB)))
	}
	l.DebugContext(ctx, "operation completed", attrs...)
}

func (l *Logger) LogFailure(ctx context.Context, operation string, e error) {
	l.ErrorContext(ctx, "operation failed",
		"operation", operation,
		"error", e,
	)
}

func (l *Logger) LogCleaned(ctx context.Context, rep cl.Report) {
	l.InfoContext(ctx, "dataset cleaned",
		"rows", rep.Rows,
		"kept", rep.Kept,
		"dropped", rep.Dropped,
		"filled", rep.Filled,
	)
	for _, w := range rep.Warnings {
		l.WarnContext(ctx, "type check", "warning", w)
	}
}
