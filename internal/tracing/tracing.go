// Package tracing installs the process tracer provider. No collector is
// wired; finished spans are batched and written to the logger at debug
// level so a purchase or draw can be followed by trace id.
package tracing

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/rifas-mx/rifas/internal/config"
)

// NewProvider builds a provider that samples root traces at
// cfg.SampleRatio and follows the parent's decision otherwise.
func NewProvider(logger *slog.Logger, cfg config.TracingConfig) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(NewLogExporter(logger)),
	)
}

// Install builds a provider and registers it as the global one. The
// returned function flushes pending spans and stops the provider.
func Install(logger *slog.Logger, cfg config.TracingConfig) func(context.Context) error {
	tp := NewProvider(logger, cfg)
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}

// LogExporter writes each finished span as one log record.
type LogExporter struct {
	logger *slog.Logger
}

func NewLogExporter(logger *slog.Logger) *LogExporter {
	return &LogExporter{logger: logger}
}

func (e *LogExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if !e.logger.Enabled(ctx, slog.LevelDebug) {
		return nil
	}
	for _, s := range spans {
		sc := s.SpanContext()
		args := []any{
			"span", s.Name(),
			"trace_id", sc.TraceID().String(),
			"span_id", sc.SpanID().String(),
			"duration", s.EndTime().Sub(s.StartTime()),
			"status", s.Status().Code.String(),
		}
		if parent := s.Parent(); parent.IsValid() {
			args = append(args, "parent_id", parent.SpanID().String())
		}
		if desc := s.Status().Description; desc != "" {
			args = append(args, "status_description", desc)
		}
		for _, kv := range s.Attributes() {
			args = append(args, string(kv.Key), kv.Value.Emit())
		}
		e.logger.DebugContext(ctx, "span finished", args...)
	}
	return nil
}

func (e *LogExporter) Shutdown(context.Context) error { return nil }
