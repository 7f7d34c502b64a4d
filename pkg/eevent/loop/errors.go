package loop

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrNotInTask indicates Await, Sleep, or Yield was called outside a
	// task of a running loop.
	ErrNotInTask = errors.New("not called from a loop task")

	// ErrWaitOnSelf indicates a task called Wait on itself.
	ErrWaitOnSelf = errors.New("task cannot wait on itself")

	// ErrInvalidConfig indicates a loop configuration value of the wrong
	// type or out of range.
	ErrInvalidConfig = errors.New("invalid loop config")

	// ErrLoopRunning indicates Run was called while the loop was already running.
	ErrLoopRunning = errors.New("loop is already running")

	// ErrLoopClosed indicates the loop was closed.
	ErrLoopClosed = errors.New("loop is closed")

	// ErrPending indicates a future's result was read before it resolved.
	ErrPending = errors.New("future is still pending")

	// ErrTaskExited indicates a routine left its goroutine through
	// runtime.Goexit instead of returning.
	ErrTaskExited = errors.New("task routine exited without returning")
)

// PanicError wraps a value recovered from a panicking routine or callback.
type PanicError struct {
	// Value is the value passed to panic.
	Value any
	// Stack is the goroutine stack at the point of recovery.
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the panic value if it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
