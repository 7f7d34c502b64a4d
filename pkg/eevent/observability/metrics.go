package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records eevent metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordTrigger records an event trigger and how many subscription
	// deliveries it started.
	RecordTrigger(ctx context.Context, event string, deliveries int)

	// RecordBindExpired records a subscription dropped because its weak
	// target was collected.
	RecordBindExpired(ctx context.Context, event string)

	// RecordTask records a finished task with its run time and outcome.
	RecordTask(ctx context.Context, name string, duration time.Duration, err error)

	// RecordRace records a resolved race over sources events.
	RecordRace(ctx context.Context, winner string, sources int)

	// RecordCallback records the time a scheduled callback held the loop.
	RecordCallback(ctx context.Context, duration time.Duration)
}

type otelMetrics struct {
	triggers        metric.Int64Counter
	deliveries      metric.Int64Counter
	bindsExpired    metric.Int64Counter
	taskRuns        metric.Int64Counter
	taskErrors      metric.Int64Counter
	taskLatency     metric.Float64Histogram
	raceResolutions metric.Int64Counter
	callbackLatency metric.Float64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("eevent")

	triggers, err := meter.Int64Counter("eevent.event.triggers",
		metric.WithDescription("Number of event triggers"),
	)
	if err != nil {
		return nil, err
	}

	deliveries, err := meter.Int64Counter("eevent.event.deliveries",
		metric.WithDescription("Number of subscription deliveries started by triggers"),
	)
	if err != nil {
		return nil, err
	}

	bindsExpired, err := meter.Int64Counter("eevent.bind.expired",
		metric.WithDescription("Number of subscriptions dropped after their weak target was collected"),
	)
	if err != nil {
		return nil, err
	}

	taskRuns, err := meter.Int64Counter("eevent.task.runs",
		metric.WithDescription("Number of finished tasks"),
	)
	if err != nil {
		return nil, err
	}

	taskErrors, err := meter.Int64Counter("eevent.task.errors",
		metric.WithDescription("Number of tasks that finished with an error"),
	)
	if err != nil {
		return nil, err
	}

	taskLatency, err := meter.Float64Histogram("eevent.task.latency_ms",
		metric.WithDescription("Task lifetime in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	raceResolutions, err := meter.Int64Counter("eevent.race.resolutions",
		metric.WithDescription("Number of resolved races"),
	)
	if err != nil {
		return nil, err
	}

	callbackLatency, err := meter.Float64Histogram("eevent.loop.callback_latency_ms",
		metric.WithDescription("Time a scheduled callback held the loop in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		triggers:        triggers,
		deliveries:      deliveries,
		bindsExpired:    bindsExpired,
		taskRuns:        taskRuns,
		taskErrors:      taskErrors,
		taskLatency:     taskLatency,
		raceResolutions: raceResolutions,
		callbackLatency: callbackLatency,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func (m *otelMetrics) RecordTrigger(ctx context.Context, event string, deliveries int) {
	attrs := metric.WithAttributes(attribute.String("event", event))
	m.triggers.Add(ctx, 1, attrs)
	if deliveries > 0 {
		m.deliveries.Add(ctx, int64(deliveries), attrs)
	}
}

func (m *otelMetrics) RecordBindExpired(ctx context.Context, event string) {
	m.bindsExpired.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
}

func (m *otelMetrics) RecordTask(ctx context.Context, name string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("task", name))
	m.taskRuns.Add(ctx, 1, attrs)
	m.taskLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	if err != nil {
		m.taskErrors.Add(ctx, 1, attrs)
	}
}

func (m *otelMetrics) RecordRace(ctx context.Context, winner string, sources int) {
	m.raceResolutions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("winner", winner),
		attribute.Int("sources", sources),
	))
}

func (m *otelMetrics) RecordCallback(ctx context.Context, duration time.Duration) {
	m.callbackLatency.Record(ctx, float64(duration.Microseconds())/1000)
}
