package eevent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/eevent/pkg/eevent/loop"
	"github.com/randalmurphal/eevent/pkg/eevent/observability"
	"github.com/randalmurphal/eevent/pkg/eevent/registry"
)

// Event is a broadcast signal that can be triggered, awaited, subscribed
// to, and raced. It belongs to one Loop and must only be used from that
// loop's goroutine or its tasks; use Post from other goroutines.
type Event[T any] struct {
	lp    *loop.Loop
	name  string
	cell  *loop.Future[T]
	binds *registry.Ordered[string, *Bind[T]]
}

type eventConfig struct {
	name string
}

// Option configures an Event.
type Option func(*eventConfig)

// WithName names the event in logs, metrics, and task names.
// Default: "event-" followed by a short random ID.
func WithName(name string) Option {
	return func(c *eventConfig) {
		if name != "" {
			c.name = name
		}
	}
}

// New creates an event on lp.
func New[T any](lp *loop.Loop, opts ...Option) *Event[T] {
	cfg := eventConfig{name: shortID("event")}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Event[T]{
		lp:    lp,
		name:  cfg.name,
		cell:  loop.NewFuture[T](lp),
		binds: registry.New[string, *Bind[T]](),
	}
}

// Name returns the event's name.
func (e *Event[T]) Name() string {
	return e.name
}

// Loop returns the loop the event belongs to.
func (e *Event[T]) Loop() *loop.Loop {
	return e.lp
}

// Future returns the cell the next trigger resolves. It is always pending;
// each trigger replaces it.
func (e *Event[T]) Future() *loop.Future[T] {
	return e.cell
}

// Len returns the number of open binds.
func (e *Event[T]) Len() int {
	return e.binds.Len()
}

// Trigger broadcasts payload. It resolves the current cell, releasing every
// task waiting on it, installs a fresh cell for later waits, and starts one
// delivery task per open bind in registration order. Trigger never blocks
// and never fails; handler errors go to the loop's ErrorHandler.
func (e *Event[T]) Trigger(payload T) {
	retired := e.cell
	e.cell = loop.NewFuture[T](e.lp)
	retired.Resolve(payload)

	deliveries := 0
	e.binds.Range(func(_ string, b *Bind[T]) bool {
		if b.closed {
			return true
		}
		if _, ok := b.target.Resolve(); !ok {
			b.expire()
			return true
		}
		b.deliver(payload)
		deliveries++
		return true
	})

	e.lp.Metrics().RecordTrigger(e.lp.Context(), e.name, deliveries)
	if e.lp.Debug() {
		observability.LogTrigger(e.lp.Logger(), e.name, deliveries)
	}
}

// Post triggers the event from any goroutine. The trigger runs on the loop
// in a later round.
func (e *Event[T]) Post(payload T) error {
	return e.lp.Submit(func() { e.Trigger(payload) })
}

// Wait suspends the calling task until the next trigger and returns its
// payload. Every task waiting when the event fires receives the same
// payload.
func (e *Event[T]) Wait(ctx context.Context) (T, error) {
	return loop.Await(ctx, e.cell)
}

// WaitTimeout is Wait bounded by d. It races the event against a timer
// event and returns ErrTimeout if the timer fires first.
func (e *Event[T]) WaitTimeout(ctx context.Context, d time.Duration) (T, error) {
	var zero T
	timer, h := after(e.lp, d, zero, WithName(e.name+".timeout"))
	defer h.Cancel()

	fired, err := e.Or(timer).Wait(ctx)
	if err != nil {
		return zero, err
	}
	if fired.Event == timer {
		return zero, fmt.Errorf("%s after %s: %w", e.name, d, ErrTimeout)
	}
	return fired.Payload, nil
}

// Then subscribes fn to every future trigger. The returned Bind holds fn
// strongly; close it to unsubscribe.
func (e *Event[T]) Then(fn Handler[T]) *Bind[T] {
	return e.ThenTarget(Strong(fn))
}

// ThenTarget subscribes target to every future trigger. Use Weak or
// WeakMethod for subscriptions that end when their receiver is collected.
func (e *Event[T]) ThenTarget(target Target[T]) *Bind[T] {
	b := &Bind[T]{
		event:  e,
		id:     shortID("bind"),
		target: target,
	}
	e.binds.Register(b.id, b)
	return b
}

// Or races e against others.
func (e *Event[T]) Or(others ...Racer[T]) *Race[T] {
	return Or(append([]Racer[T]{e}, others...)...)
}

func (e *Event[T]) sources() []*Event[T] {
	return []*Event[T]{e}
}

func shortID(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.New().String()[:8])
}
