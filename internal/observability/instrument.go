// Package observability configures the process-wide slog logger.
//
// Logs always go to stderr, keeping stdout free for the MCP stdio
// transport; a log file can additionally be configured, in which case
// every line is written to both. Records are enriched with
// OpenTelemetry trace correlation attributes when a span context is
// present, so log lines can be joined with distributed traces.
package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// Instrument installs the default slog logger. When logFile is non-empty
// its parent directory is created and log lines are mirrored to it;
// relative paths are anchored at the working directory.
func Instrument(level slog.Level, logFormat, logFile string) error {
	out := io.Writer(os.Stderr)

	if logFile != "" {
		path, err := filepath.Abs(logFile)
		if err != nil {
			return fmt.Errorf("resolving log file path: %w", err)
		}
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("creating log directory: %w", err)
			}
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		out = io.MultiWriter(os.Stderr, f)
	}

	handler, err := newHandler(out, level, logFormat)
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(&traceContextHandler{handler: handler}))
	return nil
}

// newHandler creates the base handler for the chosen format.
func newHandler(out io.Writer, level slog.Level, logFormat string) (slog.Handler, error) {
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(logFormat) {
	case "json":
		return slog.NewJSONHandler(out, opts), nil
	case "text":
		return slog.NewTextHandler(out, opts), nil
	default:
		return nil, fmt.Errorf("unsupported log format %q (expected: json, text)", logFormat)
	}
}

// traceContextHandler adds trace_id and span_id attributes to records
// logged with a context that carries a valid span, enabling log-trace
// correlation.
type traceContextHandler struct {
	handler slog.Handler
}

func (h *traceContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *traceContextHandler) Handle(ctx context.Context, record slog.Record) error {
	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		record.AddAttrs(
			slog.String("trace_id", spanCtx.TraceID().String()),
			slog.String("span_id", spanCtx.SpanID().String()),
		)
	}
	return h.handler.Handle(ctx, record)
}

func (h *traceContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceContextHandler{handler: h.handler.WithAttrs(attrs)}
}

func (h *traceContextHandler) WithGroup(name string) slog.Handler {
	return &traceContextHandler{handler: h.handler.WithGroup(name)}
}
