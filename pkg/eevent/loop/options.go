package loop

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/randalmurphal/eevent/pkg/eevent/config"
	"github.com/randalmurphal/eevent/pkg/eevent/observability"
)

// ErrorHandler receives failures that nobody else observed: errors and
// panics from tasks nobody awaited (t is the failed task) and panics from
// plain callbacks (t is nil).
type ErrorHandler func(t *Task, err error)

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder. Default: observability.NoopMetrics.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(l *Loop) {
		if m != nil {
			l.metrics = m
		}
	}
}

// WithSpanManager sets the span manager used to trace tasks.
// Default: observability.NoopSpanManager.
func WithSpanManager(sm observability.SpanManager) Option {
	return func(l *Loop) {
		if sm != nil {
			l.spans = sm
		}
	}
}

// WithErrorHandler replaces the default handler, which logs unobserved
// failures at error level.
func WithErrorHandler(h ErrorHandler) Option {
	return func(l *Loop) {
		l.onError = h
	}
}

// WithSlowCallback logs a warning for any callback or task step that holds
// the loop longer than d. Zero disables the check.
func WithSlowCallback(d time.Duration) Option {
	return func(l *Loop) {
		l.slow = d
	}
}

// WithDebug enables debug-level records for event triggers and expired
// subscriptions.
func WithDebug(enabled bool) Option {
	return func(l *Loop) {
		l.debug = enabled
	}
}

// WithShutdownRounds bounds the number of rounds Run spends draining
// cancelled tasks after the main task returns. Default: 64.
func WithShutdownRounds(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.shutdownRounds = n
		}
	}
}

// FromConfig creates a Loop from configuration. Recognised keys:
//
//	slow_callback:   duration, see WithSlowCallback
//	debug:           bool, see WithDebug
//	shutdown_rounds: positive int, see WithShutdownRounds
//
// Unknown keys fail with config.ErrUnknownKey and malformed values with
// ErrInvalidConfig. opts are applied after the configuration and take
// precedence.
func FromConfig(cfg config.Config, opts ...Option) (*Loop, error) {
	if err := cfg.Strict("slow_callback", "debug", "shutdown_rounds"); err != nil {
		return nil, fmt.Errorf("loop config: %w", err)
	}
	if cfg.Has("slow_callback") && cfg.Duration("slow_callback", -1) < 0 {
		return nil, fmt.Errorf("%w: slow_callback must be a non-negative duration", ErrInvalidConfig)
	}
	if _, ok := cfg.Raw()["debug"].(bool); cfg.Has("debug") && !ok {
		return nil, fmt.Errorf("%w: debug must be a bool", ErrInvalidConfig)
	}
	if cfg.Has("shutdown_rounds") && cfg.Int("shutdown_rounds", 0) <= 0 {
		return nil, fmt.Errorf("%w: shutdown_rounds must be a positive integer", ErrInvalidConfig)
	}

	base := []Option{
		WithSlowCallback(cfg.Duration("slow_callback", 0)),
		WithDebug(cfg.Bool("debug", false)),
		WithShutdownRounds(cfg.Int("shutdown_rounds", defaultShutdownRounds)),
	}
	return New(append(base, opts...)...), nil
}
