package loop

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// Routine is the body of a task.
type Routine func(ctx context.Context) error

type taskState uint8

const (
	taskPending taskState = iota
	taskRunning
	taskSuspended
	taskDone
)

type taskKey struct{}

// Task is an independently progressing unit of work on a Loop.
type Task struct {
	loop    *Loop
	id      string
	name    string
	routine Routine

	ctx    context.Context
	cancel context.CancelFunc
	span   trace.Span

	resume chan struct{}
	state  taskState

	// cancelPending delivers a cancellation at the next await point.
	cancelPending bool
	// wokenByCancel marks a resume caused by Cancel rather than the awaited
	// future.
	wokenByCancel bool
	// detach withdraws the current wait registration.
	detach func()

	exited   bool
	err      error
	observed bool
	started  time.Time
	done     *Future[struct{}]
}

// Go creates a task running r. The task starts in a later round. ctx
// supplies values only; use Task.Cancel to cancel the task.
func (l *Loop) Go(ctx context.Context, name string, r Routine) *Task {
	if ctx == nil {
		ctx = l.base
	}
	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	t := &Task{
		loop:    l,
		id:      fmt.Sprintf("task-%s", uuid.New().String()[:8]),
		name:    name,
		routine: r,
		cancel:  cancel,
		resume:  make(chan struct{}),
		done:    NewFuture[struct{}](l),
	}
	t.ctx = context.WithValue(taskCtx, taskKey{}, t)
	l.tasks[t] = struct{}{}

	h := l.CallSoon(t.step)
	h.label = "task " + name
	return t
}

// TaskFrom returns the task whose routine received ctx, or nil.
func TaskFrom(ctx context.Context) *Task {
	t, _ := ctx.Value(taskKey{}).(*Task)
	return t
}

// ID returns the task's unique identifier.
func (t *Task) ID() string {
	return t.id
}

// Name returns the name given to Go.
func (t *Task) Name() string {
	return t.name
}

// Done reports whether the task has finished.
func (t *Task) Done() bool {
	return t.state == taskDone
}

// Err returns the routine's error once the task has finished.
func (t *Task) Err() error {
	if t.state != taskDone {
		return nil
	}
	return t.err
}

// Cancel requests cancellation. A task that has not started never runs; a
// suspended task resumes with context.Canceled; a running task (cancelling
// itself) sees context.Canceled at its next await. It returns false if the
// task had already finished.
func (t *Task) Cancel() bool {
	if t.state == taskDone {
		return false
	}
	t.cancel()

	switch t.state {
	case taskSuspended:
		if t.detach == nil {
			// Already scheduled to resume.
			t.cancelPending = true
			return true
		}
		t.detach()
		t.detach = nil
		t.wokenByCancel = true
		h := t.loop.CallSoon(t.step)
		h.label = "task " + t.name
	default:
		t.cancelPending = true
	}
	return true
}

// Wait suspends the calling task until t finishes and returns t's error.
// A task that is waited on does not report its failure to the loop's
// ErrorHandler. A task waiting on itself gets ErrWaitOnSelf.
func (t *Task) Wait(ctx context.Context) error {
	if TaskFrom(ctx) == t {
		return ErrWaitOnSelf
	}
	t.observed = true
	_, err := Await(ctx, t.done)
	return err
}

// step runs the task until it next suspends or returns. It is always
// invoked from a loop callback, never from inside another task.
func (t *Task) step() {
	l := t.loop
	switch t.state {
	case taskDone, taskRunning:
		return
	case taskPending:
		if t.cancelPending {
			t.finish(context.Canceled)
			return
		}
		t.started = time.Now()
		t.ctx, t.span = l.spans.StartTaskSpan(t.ctx, t.name, t.id)
		go t.run()
	}

	t.state = taskRunning
	l.current = t
	t.resume <- struct{}{}
	<-l.yield
	l.current = nil

	if t.exited {
		t.finish(t.err)
		return
	}
	t.state = taskSuspended
}

// run is the task goroutine. It holds the baton from each resume until the
// matching yield.
func (t *Task) run() {
	<-t.resume
	returned := false
	defer func() {
		if !returned && t.err == nil {
			t.err = ErrTaskExited
		}
		t.exited = true
		t.loop.yield <- struct{}{}
	}()
	t.err = t.call()
	returned = true
}

func (t *Task) call() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return t.routine(t.ctx)
}

// suspend hands the baton back to the loop and blocks until resumed.
func (t *Task) suspend() {
	t.loop.yield <- struct{}{}
	<-t.resume
}

// wakeup resumes a suspended task from a loop callback.
func (t *Task) wakeup() {
	t.detach = nil
	t.step()
}

func (t *Task) finish(err error) {
	l := t.loop
	t.state = taskDone
	t.err = err
	t.cancel()
	delete(l.tasks, t)

	if t.span != nil {
		spanErr := err
		if errors.Is(err, context.Canceled) {
			spanErr = nil
		}
		l.spans.EndSpanWithError(t.span, spanErr)
	}
	var took time.Duration
	if !t.started.IsZero() {
		took = time.Since(t.started)
	}
	l.metrics.RecordTask(l.base, t.name, took, err)

	if err != nil {
		t.done.Fail(err)
	} else {
		t.done.Resolve(struct{}{})
	}

	if err != nil && !t.observed && !errors.Is(err, context.Canceled) {
		l.report(t, err)
	}
}

// enter validates that ctx belongs to the task currently holding the baton
// and delivers a pending cancellation.
func enter(ctx context.Context) (*Task, error) {
	t := TaskFrom(ctx)
	if t == nil || t.state != taskRunning || t.loop.current != t {
		return nil, ErrNotInTask
	}
	if t.cancelPending {
		t.cancelPending = false
		return nil, context.Canceled
	}
	return t, nil
}

// park suspends t until wake runs or the task is cancelled. It reports
// context.Canceled when the resume came from Cancel.
func (t *Task) park(detach func()) error {
	t.detach = detach
	t.suspend()
	if t.wokenByCancel {
		t.wokenByCancel = false
		t.cancelPending = false
		return context.Canceled
	}
	if t.cancelPending {
		t.cancelPending = false
		return context.Canceled
	}
	return nil
}

// Await suspends the calling task until f settles and returns its result.
// It must be called with the ctx of a running task. If the task is
// cancelled while waiting, Await withdraws its registration from f and
// returns context.Canceled; f itself is left untouched.
func Await[T any](ctx context.Context, f *Future[T]) (T, error) {
	var zero T
	t, err := enter(ctx)
	if err != nil {
		return zero, err
	}
	if !f.Done() {
		if err := t.park(f.OnDone(t.wakeup)); err != nil {
			return zero, err
		}
	}
	return f.Result()
}

// Yield suspends the calling task for one round, letting every callback
// already scheduled run first.
func Yield(ctx context.Context) error {
	t, err := enter(ctx)
	if err != nil {
		return err
	}
	h := t.loop.CallSoon(t.wakeup)
	h.label = "task " + t.name
	return t.park(h.Cancel)
}

// Sleep suspends the calling task for d. A non-positive d behaves like Yield.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return Yield(ctx)
	}
	t, err := enter(ctx)
	if err != nil {
		return err
	}
	h := t.loop.CallLater(d, t.wakeup)
	h.label = "task " + t.name
	return t.park(h.Cancel)
}
