package loop

import (
	"container/heap"
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/randalmurphal/eevent/pkg/eevent/observability"
)

const defaultShutdownRounds = 64

// Loop is a single-threaded cooperative scheduler.
type Loop struct {
	logger         *slog.Logger
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	onError        ErrorHandler
	slow           time.Duration
	debug          bool
	shutdownRounds int

	// Owned by whichever goroutine holds the baton.
	ready   []*Handle
	timers  timerHeap
	seq     uint64
	tasks   map[*Task]struct{}
	current *Task
	base    context.Context

	// yield carries the baton from a task back to the loop.
	yield chan struct{}

	// Submit queue, shared with foreign goroutines.
	mu        sync.Mutex
	submitted []func()
	wake      chan struct{}

	running atomic.Bool
	closed  atomic.Bool
}

// New creates a Loop.
func New(opts ...Option) *Loop {
	l := &Loop{
		logger:         slog.Default(),
		metrics:        observability.NoopMetrics{},
		spans:          observability.NoopSpanManager{},
		shutdownRounds: defaultShutdownRounds,
		tasks:          make(map[*Task]struct{}),
		base:           context.Background(),
		yield:          make(chan struct{}),
		wake:           make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Logger returns the loop's logger.
func (l *Loop) Logger() *slog.Logger {
	return l.logger
}

// Metrics returns the loop's metrics recorder.
func (l *Loop) Metrics() observability.MetricsRecorder {
	return l.metrics
}

// Spans returns the loop's span manager.
func (l *Loop) Spans() observability.SpanManager {
	return l.spans
}

// Debug reports whether debug records are enabled.
func (l *Loop) Debug() bool {
	return l.debug
}

// Context returns the context of the current Run, or context.Background()
// when the loop is idle. Tasks started without a caller context use it.
func (l *Loop) Context() context.Context {
	return l.base
}

// Running reports whether Run is in progress.
func (l *Loop) Running() bool {
	return l.running.Load()
}

// Current returns the task holding the baton, or nil inside a plain callback.
func (l *Loop) Current() *Task {
	return l.current
}

// Tasks returns the number of tasks that have not finished.
func (l *Loop) Tasks() int {
	return len(l.tasks)
}

// CallSoon schedules fn to run in the next round. Callbacks run in the
// order they were scheduled.
func (l *Loop) CallSoon(fn func()) *Handle {
	h := &Handle{fn: fn, label: "callback", index: -1}
	l.ready = append(l.ready, h)
	return h
}

// CallLater schedules fn to run once d has elapsed.
func (l *Loop) CallLater(d time.Duration, fn func()) *Handle {
	return l.CallAt(time.Now().Add(d), fn)
}

// CallAt schedules fn to run at t. Timers with the same deadline run in
// the order they were scheduled.
func (l *Loop) CallAt(t time.Time, fn func()) *Handle {
	l.seq++
	h := &Handle{fn: fn, label: "timer", when: t, seq: l.seq}
	heap.Push(&l.timers, h)
	return h
}

// Submit schedules fn from any goroutine. It is the only thread-safe way to
// reach loop state, e.g. to trigger an event from a foreign goroutine.
func (l *Loop) Submit(fn func()) error {
	l.mu.Lock()
	if l.closed.Load() {
		l.mu.Unlock()
		return ErrLoopClosed
	}
	l.submitted = append(l.submitted, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// Close rejects further Submit and Run calls. Tasks still suspended stay
// suspended.
func (l *Loop) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed.Store(true)
	return nil
}

// Run starts main as a task and runs the loop until it finishes. Remaining
// tasks are then cancelled and given a bounded number of rounds to unwind;
// pending timers are kept for a later Run.
// Run returns main's error. Cancelling ctx cancels the main task.
func (l *Loop) Run(ctx context.Context, main Routine) error {
	if l.closed.Load() {
		return ErrLoopClosed
	}
	if !l.running.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer l.running.Store(false)

	l.base = ctx
	defer func() { l.base = context.Background() }()

	t := l.Go(ctx, "main", main)
	t.observed = true

	done := ctx.Done()
	for t.state != taskDone {
		if done != nil && ctx.Err() != nil {
			t.Cancel()
			done = nil
		}
		l.runOnce(done, true)
	}

	l.shutdown()
	return t.err
}

// runOnce runs one round: it waits for work if none is ready (when block is
// set), moves due timers to the ready queue, and runs every callback that
// was ready when the round began.
func (l *Loop) runOnce(done <-chan struct{}, block bool) {
	l.drainSubmitted()

	if len(l.ready) == 0 && block {
		var timerC <-chan time.Time
		if next := l.timers.next(); next != nil {
			wait := time.Until(next.when)
			if wait > 0 {
				tm := time.NewTimer(wait)
				defer tm.Stop()
				timerC = tm.C
			} else {
				timerC = closedTimeC
			}
		}
		select {
		case <-l.wake:
		case <-timerC:
		case <-done:
		}
		l.drainSubmitted()
	}

	now := time.Now()
	for {
		next := l.timers.next()
		if next == nil || next.when.After(now) {
			break
		}
		heap.Pop(&l.timers)
		l.ready = append(l.ready, next)
	}

	n := len(l.ready)
	for i := 0; i < n; i++ {
		h := l.ready[i]
		l.ready[i] = nil
		if h.cancelled {
			continue
		}
		l.invoke(h)
	}
	l.ready = append(l.ready[:0:0], l.ready[n:]...)
}

var closedTimeC = func() <-chan time.Time {
	c := make(chan time.Time)
	close(c)
	return c
}()

func (l *Loop) drainSubmitted() {
	l.mu.Lock()
	fns := l.submitted
	l.submitted = nil
	l.mu.Unlock()
	for _, fn := range fns {
		h := l.CallSoon(fn)
		h.label = "submitted"
	}
}

func (l *Loop) invoke(h *Handle) {
	done := observability.TimedOperation()
	func() {
		defer func() {
			if r := recover(); r != nil {
				l.report(nil, &PanicError{Value: r, Stack: debug.Stack()})
			}
		}()
		h.fn()
	}()
	took := done()

	l.metrics.RecordCallback(l.base, took)
	if l.slow > 0 && took > l.slow {
		observability.LogSlowCallback(l.logger, h.label, took, l.slow)
	}
}

func (l *Loop) report(t *Task, err error) {
	if l.onError != nil {
		l.onError(t, err)
		return
	}
	if t == nil {
		observability.LogCallbackPanic(l.logger, err)
		return
	}
	observability.LogTaskFailed(l.logger, t.id, t.name, err)
}

func (l *Loop) shutdown() {
	for t := range l.tasks {
		t.Cancel()
	}

	rounds := 0
	for len(l.tasks) > 0 && rounds < l.shutdownRounds {
		if len(l.ready) == 0 && !l.hasSubmitted() {
			break
		}
		l.runOnce(nil, false)
		rounds++
	}
	observability.LogShutdown(l.logger, len(l.tasks), rounds)
}

func (l *Loop) hasSubmitted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.submitted) > 0
}
