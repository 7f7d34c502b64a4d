/*
Package eevent provides awaitable broadcast events for a cooperative loop.

An Event is a signal that producers trigger with a payload and consumers
either wait on once, subscribe to with a standing Bind, or race against
other events. Everything runs on a loop.Loop: waits suspend only the
calling task, and subscription handlers run as independent tasks, so a
trigger never blocks its caller.

# Basic Usage

	lp := loop.New()
	ready := eevent.New[string](lp, eevent.WithName("ready"))

	err := lp.Run(ctx, func(ctx context.Context) error {
	    bind := ready.Then(func(ctx context.Context, who string) error {
	        fmt.Println("hello,", who)
	        return nil
	    })
	    defer bind.Close()

	    lp.CallLater(time.Second, func() { ready.Trigger("world") })
	    who, err := ready.Wait(ctx)
	    ...
	})

# Waiting

Wait suspends until the next trigger. Each trigger resolves the cell that
current waiters hold and installs a fresh one, so an event can be awaited
again for every later trigger. All tasks waiting when the event fires see
the same payload.

# Subscriptions

Then registers a handler that receives every trigger until its Bind is
closed. Each delivery runs in its own task, in registration order. A Bind
can hold its target weakly (Weak, WeakMethod); once the target is
collected the Bind expires without error.

# Races

Or combines events (and other races) into a Race. Race.Wait returns the
first event to fire together with its payload and withdraws every other
registration before the waiting task resumes. Timeouts are races against
a timer event, see After and Event.WaitTimeout. Every builds an event
driven by a cron schedule.

# Threading

Events are owned by their loop. From another goroutine, use Post (or
loop.Submit) instead of Trigger.
*/
package eevent
