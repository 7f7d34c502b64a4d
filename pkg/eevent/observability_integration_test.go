package eevent_test

import (
	"context"
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/randalmurphal/eevent/pkg/eevent"
	"github.com/randalmurphal/eevent/pkg/eevent/loop"
	"github.com/randalmurphal/eevent/pkg/eevent/observability"
)

// The OTel globals delegate to the first providers installed in a process,
// so this is the only test in the package that installs them.
func TestObservability_Integration(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetMeterProvider(mp)
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = mp.Shutdown(context.Background())
		_ = tp.Shutdown(context.Background())
	})

	lp := loop.New(
		loop.WithMetrics(observability.NewMetricsRecorder()),
		loop.WithSpanManager(observability.NewSpanManager()),
		loop.WithErrorHandler(func(*loop.Task, error) {}),
	)
	ev := eevent.New[int](lp, eevent.WithName("orders"))
	other := eevent.New[int](lp, eevent.WithName("cancelled"))
	ev.Then(func(context.Context, int) error { return nil })
	ev.Then(func(context.Context, int) error { return errors.New("declined") })

	handler := new(eevent.Handler[int])
	*handler = func(context.Context, int) error { return nil }
	ev.ThenTarget(eevent.Weak(handler))
	handler = nil
	runtime.GC()

	err := runLoop(t, lp, func(ctx context.Context) error {
		lp.CallSoon(func() { ev.Trigger(1) })
		if _, err := ev.Or(other).Wait(ctx); err != nil {
			return err
		}
		return loop.Yield(ctx)
	})
	require.NoError(t, err)

	t.Run("spans", func(t *testing.T) {
		var deliveries, failed int
		for _, s := range exporter.GetSpans() {
			assert.Equal(t, "eevent.task", s.Name)
			if !hasAttr(s.Attributes, "task.name", "deliver orders") {
				continue
			}
			deliveries++
			if s.Status.Code == codes.Error {
				failed++
			}
			require.NotEmpty(t, s.Events)
			assert.Equal(t, "eevent.deliver", s.Events[0].Name)
		}
		assert.Equal(t, 2, deliveries, "the collected weak target gets no task")
		assert.Equal(t, 1, failed)
	})

	t.Run("metrics", func(t *testing.T) {
		var rm metricdata.ResourceMetrics
		require.NoError(t, reader.Collect(context.Background(), &rm))

		assert.Equal(t, int64(1), counter(t, rm, "eevent.event.triggers", "event", "orders"))
		assert.Equal(t, int64(2), counter(t, rm, "eevent.event.deliveries", "event", "orders"))
		assert.Equal(t, int64(1), counter(t, rm, "eevent.bind.expired", "event", "orders"))
		assert.Equal(t, int64(1), counter(t, rm, "eevent.race.resolutions", "winner", "orders"))
		assert.Equal(t, int64(1), counter(t, rm, "eevent.task.errors", "task", "deliver orders"))
	})
}

func hasAttr(attrs []attribute.KeyValue, key, value string) bool {
	for _, kv := range attrs {
		if string(kv.Key) == key && kv.Value.AsString() == value {
			return true
		}
	}
	return false
}

func counter(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) int64 {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "expected Sum type for %s", name)
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
					return dp.Value
				}
			}
		}
	}
	return 0
}
