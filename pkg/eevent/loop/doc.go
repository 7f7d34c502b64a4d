/*
Package loop provides a single-threaded cooperative scheduler: callbacks,
timers, one-shot futures, and tasks that suspend only at explicit await
points.

# Overview

A Loop owns a FIFO of ready callbacks and a heap of timers. Each round it
runs the callbacks that were ready when the round began; anything they
schedule runs in a later round. Tasks are goroutines, but only one of them
(or the loop itself) executes at any moment: the loop hands a task the
baton when it is stepped and takes it back when the task awaits or returns.
Code running on the loop therefore never needs locks.

# Basic Usage

	lp := loop.New(loop.WithLogger(logger))

	err := lp.Run(ctx, func(ctx context.Context) error {
	    f := loop.NewFuture[string](lp)
	    lp.CallLater(100*time.Millisecond, func() { f.Resolve("done") })

	    v, err := loop.Await(ctx, f)
	    if err != nil {
	        return err
	    }
	    fmt.Println(v) // done
	    return nil
	})

# Host Capabilities

  - CallSoon schedules a callback for the next round (FIFO)
  - CallLater and CallAt schedule a callback after a delay
  - Go creates a task that starts in a later round
  - Await suspends the calling task until a Future resolves

Sleep and Yield are built from these.

# Cancellation

Task.Cancel is the only way to cancel a task. A suspended task resumes with
context.Canceled at its await point; a task that has not started never runs
its routine. The ctx handed to a routine is cancelled alongside, so code
blocking outside the loop can observe it, but cancelling the ctx passed to
Go does not cancel the task. Cancelling the ctx passed to Run cancels the
main task.

# Failures

A routine that returns an error, or panics, fails its task. When no other
task is waiting on it, the failure goes to the loop's ErrorHandler, which
logs it by default. The loop never swallows failures silently and a failing
task does not disturb other tasks.

# Thread Safety

Submit is the only method that may be called from a goroutine other than
the one running the loop or one of its tasks.
*/
package loop
