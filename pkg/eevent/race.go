package eevent

import (
	"context"
	"slices"

	"github.com/randalmurphal/eevent/pkg/eevent/loop"
)

// Racer is anything that can take part in a Race: an *Event or a *Race.
type Racer[T any] interface {
	sources() []*Event[T]
}

// Fired identifies the event that won a race and the payload it fired with.
type Fired[T any] struct {
	Event   *Event[T]
	Payload T
}

// Race waits for whichever of several events fires first. A Race holds no
// registrations between waits, so it can be awaited any number of times.
type Race[T any] struct {
	events []*Event[T]
}

// Or builds a race over racers. Nested races are flattened into one list
// of events; an event that appears more than once takes part once, at its
// first position.
func Or[T any](racers ...Racer[T]) *Race[T] {
	r := &Race[T]{}
	for _, racer := range racers {
		if racer == nil {
			continue
		}
		for _, ev := range racer.sources() {
			if ev != nil && !slices.Contains(r.events, ev) {
				r.events = append(r.events, ev)
			}
		}
	}
	return r
}

// Or returns a new race over r's events followed by others.
func (r *Race[T]) Or(others ...Racer[T]) *Race[T] {
	return Or(append([]Racer[T]{r}, others...)...)
}

// Events returns the race's events in order.
func (r *Race[T]) Events() []*Event[T] {
	return slices.Clone(r.events)
}

func (r *Race[T]) sources() []*Event[T] {
	return r.events
}

// Wait suspends the calling task until one of the events fires and reports
// which one. The callback of the first event to fire retracts every other
// registration before the waiting task resumes. If the task is cancelled,
// the registrations are retracted as it unwinds.
//
// When several events fire in the same round, the winner is the one whose
// trigger ran first.
func (r *Race[T]) Wait(ctx context.Context) (Fired[T], error) {
	if len(r.events) == 0 {
		return Fired[T]{}, ErrEmptyRace
	}
	lp := r.events[0].lp
	result := loop.NewFuture[Fired[T]](lp)

	removes := make([]func(), 0, len(r.events))
	retract := func() {
		pending := removes
		removes = nil
		for _, remove := range pending {
			remove()
		}
	}
	defer retract()

	for _, ev := range r.events {
		cell := ev.cell
		removes = append(removes, cell.OnDone(func() {
			retract()
			payload, _ := cell.Result()
			if result.Resolve(Fired[T]{Event: ev, Payload: payload}) {
				lp.Metrics().RecordRace(lp.Context(), ev.name, len(r.events))
			}
		}))
	}

	return loop.Await(ctx, result)
}
