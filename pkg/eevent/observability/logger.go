// Package observability provides logging, metrics, and tracing hooks for
// the eevent loop and its events.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// Everything is opt-in. A nil logger disables the Log helpers, and
// NoopMetrics / NoopSpanManager stand in when metrics or tracing are off.
package observability

import (
	"log/slog"
	"time"
)

// LogTaskFailed logs a task failure that nobody awaited.
func LogTaskFailed(logger *slog.Logger, taskID, name string, err error) {
	if logger == nil {
		return
	}
	logger.Error("task failed",
		slog.String("task_id", taskID),
		slog.String("task", name),
		slog.String("error", err.Error()),
	)
}

// LogCallbackPanic logs a panic recovered from a scheduled callback.
func LogCallbackPanic(logger *slog.Logger, err error) {
	if logger == nil {
		return
	}
	logger.Error("callback panicked",
		slog.String("error", err.Error()),
	)
}

// LogSlowCallback logs a callback or task step that held the loop longer
// than threshold.
func LogSlowCallback(logger *slog.Logger, what string, took, threshold time.Duration) {
	if logger == nil {
		return
	}
	logger.Warn("slow callback",
		slog.String("callback", what),
		slog.Float64("duration_ms", float64(took.Microseconds())/1000),
		slog.Float64("threshold_ms", float64(threshold.Microseconds())/1000),
	)
}

// LogTrigger logs an event trigger.
func LogTrigger(logger *slog.Logger, event string, deliveries int) {
	if logger == nil {
		return
	}
	logger.Debug("event triggered",
		slog.String("event", event),
		slog.Int("deliveries", deliveries),
	)
}

// LogBindExpired logs a subscription whose weak target was collected.
func LogBindExpired(logger *slog.Logger, event, bindID string) {
	if logger == nil {
		return
	}
	logger.Debug("bind target collected",
		slog.String("event", event),
		slog.String("bind_id", bindID),
	)
}

// LogShutdown logs the drain of tasks left after the main task returned.
func LogShutdown(logger *slog.Logger, pending, rounds int) {
	if logger == nil {
		return
	}
	if pending > 0 {
		logger.Warn("loop stopped with unfinished tasks",
			slog.Int("pending", pending),
			slog.Int("rounds", rounds),
		)
		return
	}
	logger.Debug("loop stopped",
		slog.Int("rounds", rounds),
	)
}

// TimedOperation measures the duration of an operation.
//
//	done := TimedOperation()
//	// ... do work ...
//	took := done()
func TimedOperation() func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		return time.Since(start)
	}
}
