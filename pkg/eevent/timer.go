package eevent

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/randalmurphal/eevent/pkg/eevent/loop"
)

// After returns an event that triggers once with payload after d.
func After[T any](lp *loop.Loop, d time.Duration, payload T, opts ...Option) *Event[T] {
	ev, _ := after(lp, d, payload, opts...)
	return ev
}

func after[T any](lp *loop.Loop, d time.Duration, payload T, opts ...Option) (*Event[T], *loop.Handle) {
	ev := New[T](lp, opts...)
	h := lp.CallLater(d, func() { ev.Trigger(payload) })
	return ev, h
}

// Schedule is an event triggered on a cron schedule.
type Schedule[T any] struct {
	event   *Event[T]
	sched   cron.Schedule
	payload T
	next    time.Time
	handle  *loop.Handle
	stopped bool
}

// Every returns a schedule whose event triggers with payload on each tick of
// expr. expr uses the standard five-field cron syntax or a descriptor such
// as "@hourly" or "@every 30s".
func Every[T any](lp *loop.Loop, expr string, payload T, opts ...Option) (*Schedule[T], error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", expr, err)
	}
	opts = append([]Option{WithName("every " + expr)}, opts...)
	s := &Schedule[T]{
		event:   New[T](lp, opts...),
		sched:   sched,
		payload: payload,
	}
	s.arm(time.Now())
	return s, nil
}

// Event returns the scheduled event.
func (s *Schedule[T]) Event() *Event[T] {
	return s.event
}

// Next returns the time of the next tick, or the zero time once stopped.
func (s *Schedule[T]) Next() time.Time {
	if s.stopped {
		return time.Time{}
	}
	return s.next
}

// Stop cancels all future ticks.
func (s *Schedule[T]) Stop() {
	s.stopped = true
	if s.handle != nil {
		s.handle.Cancel()
		s.handle = nil
	}
}

func (s *Schedule[T]) arm(from time.Time) {
	s.next = s.sched.Next(from)
	if s.next.IsZero() {
		return
	}
	s.handle = s.event.lp.CallAt(s.next, s.tick)
}

func (s *Schedule[T]) tick() {
	if s.stopped {
		return
	}
	// Missed ticks are skipped, not replayed.
	from := time.Now()
	if s.next.After(from) {
		from = s.next
	}
	s.arm(from)
	s.event.Trigger(s.payload)
}
