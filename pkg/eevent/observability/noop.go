package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoopMetrics is a MetricsRecorder that does nothing.
type NoopMetrics struct{}

var _ MetricsRecorder = NoopMetrics{}

// RecordTrigger does nothing.
func (NoopMetrics) RecordTrigger(_ context.Context, _ string, _ int) {}

// RecordBindExpired does nothing.
func (NoopMetrics) RecordBindExpired(_ context.Context, _ string) {}

// RecordTask does nothing.
func (NoopMetrics) RecordTask(_ context.Context, _ string, _ time.Duration, _ error) {}

// RecordRace does nothing.
func (NoopMetrics) RecordRace(_ context.Context, _ string, _ int) {}

// RecordCallback does nothing.
func (NoopMetrics) RecordCallback(_ context.Context, _ time.Duration) {}

// NoopSpanManager is a SpanManager that does nothing.
type NoopSpanManager struct{}

var _ SpanManager = NoopSpanManager{}

var noopSpan = noop.Span{}

// StartTaskSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartTaskSpan(ctx context.Context, _, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// EndSpanWithError does nothing.
func (NoopSpanManager) EndSpanWithError(_ trace.Span, _ error) {}

// AddSpanEvent does nothing.
func (NoopSpanManager) AddSpanEvent(_ context.Context, _ string, _ ...attribute.KeyValue) {}
