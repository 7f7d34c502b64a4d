package eevent

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/randalmurphal/eevent/pkg/eevent/loop"
	"github.com/randalmurphal/eevent/pkg/eevent/observability"
)

// Bind is a standing subscription created by Event.Then. It delivers every
// trigger to its target until it is closed or its weak target dies.
type Bind[T any] struct {
	event  *Event[T]
	id     string
	target Target[T]
	closed bool
}

// ID returns the bind's unique identifier.
func (b *Bind[T]) ID() string {
	return b.id
}

// Event returns the event the bind subscribes to.
func (b *Bind[T]) Event() *Event[T] {
	return b.event
}

// Alive reports whether the bind is open and its target still resolves.
func (b *Bind[T]) Alive() bool {
	if b.closed {
		return false
	}
	_, ok := b.target.Resolve()
	return ok
}

// Close removes the bind from its event. Triggers after Close never reach
// the target; deliveries already started by an earlier trigger still run.
// Close is idempotent and always returns nil.
func (b *Bind[T]) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	b.event.binds.Delete(b.id)
	return nil
}

// Within runs fn and closes the bind when fn returns or panics.
func (b *Bind[T]) Within(fn func(*Bind[T]) error) error {
	defer b.Close()
	return fn(b)
}

// expire closes a bind whose weak target died.
func (b *Bind[T]) expire() {
	if b.closed {
		return
	}
	b.Close()

	lp := b.event.lp
	lp.Metrics().RecordBindExpired(lp.Context(), b.event.name)
	if lp.Debug() {
		observability.LogBindExpired(lp.Logger(), b.event.name, b.id)
	}
}

// deliver starts a task handing payload to the target. The target is
// resolved again when the task runs, so a weak target that died in the
// meantime is skipped.
func (b *Bind[T]) deliver(payload T) *loop.Task {
	lp := b.event.lp
	return lp.Go(lp.Context(), "deliver "+b.event.name, func(ctx context.Context) error {
		fn, ok := b.target.Resolve()
		if !ok {
			b.expire()
			return nil
		}
		lp.Spans().AddSpanEvent(ctx, "eevent.deliver",
			attribute.String("event", b.event.name),
			attribute.String("bind.id", b.id),
		)
		return fn(ctx, payload)
	})
}
