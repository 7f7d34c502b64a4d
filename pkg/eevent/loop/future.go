package loop

import "slices"

type futureState uint8

const (
	futurePending futureState = iota
	futureResolved
	futureFailed
)

// Future is a single-assignment result cell owned by a Loop.
//
// Done-callbacks registered with OnDone are scheduled with CallSoon when the
// future settles, in registration order. A Future must only be used from the
// loop's goroutine or its tasks.
type Future[T any] struct {
	loop      *Loop
	state     futureState
	value     T
	err       error
	callbacks []*doneCallback
}

type doneCallback struct {
	fn      func()
	removed bool
}

// NewFuture creates a pending future on lp.
func NewFuture[T any](lp *Loop) *Future[T] {
	return &Future[T]{loop: lp}
}

// Resolve settles the future with v. It returns false if the future
// was already settled.
func (f *Future[T]) Resolve(v T) bool {
	if f.state != futurePending {
		return false
	}
	f.value = v
	f.state = futureResolved
	f.settle()
	return true
}

// Fail settles the future with err. It returns false if the future was
// already settled.
func (f *Future[T]) Fail(err error) bool {
	if f.state != futurePending {
		return false
	}
	f.err = err
	f.state = futureFailed
	f.settle()
	return true
}

// Done reports whether the future has settled.
func (f *Future[T]) Done() bool {
	return f.state != futurePending
}

// Result returns the settled value or error, or ErrPending.
func (f *Future[T]) Result() (T, error) {
	switch f.state {
	case futureResolved:
		return f.value, nil
	case futureFailed:
		var zero T
		return zero, f.err
	default:
		var zero T
		return zero, ErrPending
	}
}

// OnDone registers fn to run in a loop callback once the future settles.
// If it has already settled, fn is scheduled right away. The returned
// function unregisters fn; after it returns fn will not run, even if it
// was already scheduled.
func (f *Future[T]) OnDone(fn func()) (remove func()) {
	cb := &doneCallback{fn: fn}
	if f.state != futurePending {
		f.schedule(cb)
	} else {
		f.callbacks = append(f.callbacks, cb)
	}
	return func() {
		if cb.removed {
			return
		}
		cb.removed = true
		if i := slices.Index(f.callbacks, cb); i >= 0 {
			f.callbacks = slices.Delete(f.callbacks, i, i+1)
		}
	}
}

// Waiters returns the number of done-callbacks still registered on a
// pending future.
func (f *Future[T]) Waiters() int {
	return len(f.callbacks)
}

func (f *Future[T]) settle() {
	callbacks := f.callbacks
	f.callbacks = nil
	for _, cb := range callbacks {
		f.schedule(cb)
	}
}

func (f *Future[T]) schedule(cb *doneCallback) {
	h := f.loop.CallSoon(func() {
		if !cb.removed {
			cb.removed = true
			cb.fn()
		}
	})
	h.label = "future callback"
}
