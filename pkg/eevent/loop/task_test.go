package loop_test

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eevent/pkg/eevent/loop"
)

func TestGo_StartsInLaterRound(t *testing.T) {
	lp := loop.New()
	var order []string

	err := run(t, lp, func(ctx context.Context) error {
		task := lp.Go(ctx, "child", func(ctx context.Context) error {
			order = append(order, "child")
			return nil
		})
		assert.NotEmpty(t, task.ID())
		assert.Equal(t, "child", task.Name())
		assert.False(t, task.Done())

		order = append(order, "main")
		return task.Wait(ctx)
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"main", "child"}, order)
}

func TestTaskFrom(t *testing.T) {
	lp := loop.New()

	err := run(t, lp, func(ctx context.Context) error {
		main := loop.TaskFrom(ctx)
		require.NotNil(t, main)
		assert.Equal(t, "main", main.Name())
		assert.Same(t, main, lp.Current())
		return nil
	})

	require.NoError(t, err)
	assert.Nil(t, loop.TaskFrom(context.Background()))
}

func TestTask_ContextValuesInherited(t *testing.T) {
	type key struct{}
	lp := loop.New()
	ctx := context.WithValue(context.Background(), key{}, "v")

	err := lp.Run(ctx, func(ctx context.Context) error {
		child := lp.Go(ctx, "child", func(ctx context.Context) error {
			assert.Equal(t, "v", ctx.Value(key{}))
			assert.Equal(t, "child", loop.TaskFrom(ctx).Name())
			return nil
		})
		return child.Wait(ctx)
	})

	require.NoError(t, err)
}

func TestTask_WaitReturnsError(t *testing.T) {
	var reported int
	lp := loop.New(loop.WithErrorHandler(func(*loop.Task, error) { reported++ }))
	sentinel := errors.New("child failed")

	err := run(t, lp, func(ctx context.Context) error {
		child := lp.Go(ctx, "child", func(ctx context.Context) error { return sentinel })
		err := child.Wait(ctx)
		assert.ErrorIs(t, err, sentinel)
		assert.True(t, child.Done())
		assert.ErrorIs(t, child.Err(), sentinel)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 0, reported, "awaited failures are not reported")
}

func TestTask_WaitOnSelf(t *testing.T) {
	lp := loop.New()

	err := run(t, lp, func(ctx context.Context) error {
		self := loop.TaskFrom(ctx)
		assert.ErrorIs(t, self.Wait(ctx), loop.ErrWaitOnSelf)
		assert.False(t, self.Done())
		return nil
	})

	require.NoError(t, err)
}

func TestTask_UnobservedFailureReported(t *testing.T) {
	var failed *loop.Task
	var failure error
	lp := loop.New(loop.WithErrorHandler(func(task *loop.Task, err error) {
		failed, failure = task, err
	}))
	sentinel := errors.New("detached failure")

	var sibling bool
	err := run(t, lp, func(ctx context.Context) error {
		lp.Go(ctx, "detached", func(ctx context.Context) error { return sentinel })
		lp.Go(ctx, "sibling", func(ctx context.Context) error {
			sibling = true
			return nil
		})
		return loop.Yield(ctx)
	})

	require.NoError(t, err)
	require.NotNil(t, failed)
	assert.Equal(t, "detached", failed.Name())
	assert.ErrorIs(t, failure, sentinel)
	assert.True(t, sibling, "a failing task does not affect its siblings")
}

func TestTask_PanicBecomesError(t *testing.T) {
	lp := loop.New(loop.WithErrorHandler(func(*loop.Task, error) {}))

	err := run(t, lp, func(ctx context.Context) error {
		child := lp.Go(ctx, "panics", func(ctx context.Context) error {
			panic(errors.New("kaboom"))
		})
		return child.Wait(ctx)
	})

	var pe *loop.PanicError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Error(), "kaboom")
	assert.EqualError(t, errors.Unwrap(pe), "kaboom")
}

func TestTask_GoexitBecomesError(t *testing.T) {
	lp := loop.New(loop.WithErrorHandler(func(*loop.Task, error) {}))

	err := run(t, lp, func(ctx context.Context) error {
		child := lp.Go(ctx, "exits", func(ctx context.Context) error {
			runtime.Goexit()
			return nil
		})
		return child.Wait(ctx)
	})

	assert.ErrorIs(t, err, loop.ErrTaskExited)
}

func TestTask_CancelSuspended(t *testing.T) {
	lp := loop.New()

	err := run(t, lp, func(ctx context.Context) error {
		f := loop.NewFuture[int](lp)
		var childErr error
		var childCtxErr error
		child := lp.Go(ctx, "child", func(ctx context.Context) error {
			_, childErr = loop.Await(ctx, f)
			childCtxErr = ctx.Err()
			return childErr
		})
		if err := loop.Yield(ctx); err != nil {
			return err
		}
		assert.Equal(t, 1, f.Waiters())

		assert.True(t, child.Cancel())
		assert.Equal(t, 0, f.Waiters(), "cancel withdraws the wait registration")

		err := child.Wait(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.ErrorIs(t, childErr, context.Canceled)
		assert.ErrorIs(t, childCtxErr, context.Canceled)
		assert.False(t, f.Done(), "the awaited future is not touched")
		assert.False(t, child.Cancel(), "cancelling a finished task reports false")
		return nil
	})

	require.NoError(t, err)
}

func TestTask_CancelBeforeStart(t *testing.T) {
	lp := loop.New()
	ran := false

	err := run(t, lp, func(ctx context.Context) error {
		child := lp.Go(ctx, "child", func(ctx context.Context) error {
			ran = true
			return nil
		})
		child.Cancel()
		return nil
	})

	require.NoError(t, err)
	assert.False(t, ran)
}

func TestTask_CancelAfterFutureResolvedStillCancels(t *testing.T) {
	lp := loop.New()

	err := run(t, lp, func(ctx context.Context) error {
		f := loop.NewFuture[int](lp)
		child := lp.Go(ctx, "child", func(ctx context.Context) error {
			_, err := loop.Await(ctx, f)
			return err
		})
		if err := loop.Yield(ctx); err != nil {
			return err
		}
		// Resolution schedules the wakeup; cancelling before it runs wins.
		f.Resolve(1)
		child.Cancel()
		return child.Wait(ctx)
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestTask_SelfCancelDeliveredAtNextAwait(t *testing.T) {
	lp := loop.New()

	err := run(t, lp, func(ctx context.Context) error {
		child := lp.Go(ctx, "child", func(ctx context.Context) error {
			loop.TaskFrom(ctx).Cancel()
			err := loop.Sleep(ctx, time.Hour)
			assert.ErrorIs(t, err, context.Canceled)
			// Cancellation is delivered once; cleanup may await again.
			return loop.Yield(ctx)
		})
		return child.Wait(ctx)
	})

	require.NoError(t, err)
}

func TestTask_CancelSleeping(t *testing.T) {
	lp := loop.New()

	start := time.Now()
	err := run(t, lp, func(ctx context.Context) error {
		child := lp.Go(ctx, "sleeper", func(ctx context.Context) error {
			return loop.Sleep(ctx, time.Hour)
		})
		lp.CallLater(10*time.Millisecond, func() { child.Cancel() })
		return child.Wait(ctx)
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
