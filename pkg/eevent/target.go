package eevent

import (
	"context"
	"weak"
)

// Handler receives one event payload. Each delivery runs in its own task.
type Handler[T any] func(ctx context.Context, payload T) error

// Target resolves the handler a Bind delivers to. Resolve reports false
// once the handler's referent is gone; the Bind then expires silently.
type Target[T any] interface {
	Resolve() (Handler[T], bool)
}

type strongTarget[T any] struct {
	fn Handler[T]
}

// Strong holds fn for as long as the Bind is open.
func Strong[T any](fn Handler[T]) Target[T] {
	return strongTarget[T]{fn: fn}
}

func (s strongTarget[T]) Resolve() (Handler[T], bool) {
	return s.fn, s.fn != nil
}

type weakTarget[T any] struct {
	ptr weak.Pointer[Handler[T]]
}

// Weak refers to *h without keeping it alive. Once the handler value is
// unreachable and collected, the Bind expires.
func Weak[T any](h *Handler[T]) Target[T] {
	return weakTarget[T]{ptr: weak.Make(h)}
}

func (w weakTarget[T]) Resolve() (Handler[T], bool) {
	h := w.ptr.Value()
	if h == nil || *h == nil {
		return nil, false
	}
	return *h, true
}

type weakMethod[R, T any] struct {
	recv   weak.Pointer[R]
	method func(*R, context.Context, T) error
}

// WeakMethod delivers to method on recv without keeping recv alive. method
// is usually a method expression such as (*Widget).OnResize.
func WeakMethod[R, T any](recv *R, method func(*R, context.Context, T) error) Target[T] {
	return weakMethod[R, T]{recv: weak.Make(recv), method: method}
}

func (w weakMethod[R, T]) Resolve() (Handler[T], bool) {
	recv := w.recv.Value()
	if recv == nil || w.method == nil {
		return nil, false
	}
	method := w.method
	return func(ctx context.Context, payload T) error {
		return method(recv, ctx, payload)
	}, true
}
