package binder

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/randalmurphal/eevent/pkg/eevent"
	"github.com/randalmurphal/eevent/pkg/eevent/registry"
)

// Class is the handler table of an instance type T. Each entry maps a
// method name to the event it handles. A Class is built once, usually in a
// package-level var, and then attaches handlers to every new instance.
//
// Class is NOT safe for concurrent modification. Finish declaring handlers
// before the first Attach.
//
// Example:
//
//	var buttonClass = binder.Define[Button]("Button").AutoBind()
//
//	func init() {
//	    binder.On(buttonClass, "OnClick", clicked, (*Button).OnClick)
//	}
//
//	func NewButton() (*Button, error) {
//	    b := &Button{}
//	    bindings, err := buttonClass.Attach(b)
//	    if err != nil {
//	        return nil, err
//	    }
//	    b.bindings = bindings
//	    return b, nil
//	}
type Class[T any] struct {
	name     string
	parent   level
	up       func(*T) any
	autoBind bool
	handlers *registry.Ordered[string, handler[T]]
}

type handler[T any] struct {
	event string
	bind  func(inst *T) (io.Closer, error)
}

// level is the type-erased view of a Class used to walk a hierarchy whose
// levels have different instance types.
type level interface {
	className() string
	autoBound() bool
	parentLevel() level
	entries() []Method
	bindMethod(name string, inst any) (io.Closer, error)
	project(inst any) (any, error)
}

// Method is one resolved entry of a class's handler table.
type Method struct {
	// Name is the method name.
	Name string
	// Class is the name of the class whose declaration is used.
	Class string
	// Event names the handled event, or the resolver for OnGet entries.
	Event string
}

// Define starts a root class for instances of T.
//
// Panics if name is empty.
func Define[T any](name string) *Class[T] {
	if strings.TrimSpace(name) == "" {
		panic("binder: class name cannot be empty")
	}
	return &Class[T]{
		name:     name,
		handlers: registry.New[string, handler[T]](),
	}
}

// Extend starts a class for T derived from parent. up returns the embedded
// parent value of an instance, typically &t.Parent, and is how inherited
// handlers reach their receiver.
//
// Panics if name is empty or parent or up is nil.
func Extend[T, P any](name string, parent *Class[P], up func(*T) *P) *Class[T] {
	if parent == nil {
		panic("binder: parent class cannot be nil")
	}
	if up == nil {
		panic("binder: parent projection cannot be nil")
	}
	c := Define[T](name)
	c.parent = parent
	c.up = func(inst *T) any {
		if p := up(inst); p != nil {
			return p
		}
		return nil
	}
	return c
}

// AutoBind marks the class as binding its handlers on Attach. Subclasses
// of an auto-binding class bind as well.
// Returns the class for method chaining.
func (c *Class[T]) AutoBind() *Class[T] {
	c.autoBind = true
	return c
}

// Name returns the class name.
func (c *Class[T]) Name() string {
	return c.name
}

// On declares h as the handler of method for ev. Every instance attached
// through c or a subclass that does not redeclare method subscribes to ev.
// Declaring the same method again on c replaces the earlier declaration.
// Returns the class for method chaining.
//
// Panics if method is empty or ev or h is nil.
func On[T, P any](c *Class[T], method string, ev *eevent.Event[P], h func(*T, context.Context, P) error) *Class[T] {
	if ev == nil {
		panic(fmt.Sprintf("binder: %s.%s: event cannot be nil", c.name, method))
	}
	return declare(c, method, ev.Name(), func(*T) *eevent.Event[P] { return ev }, h)
}

// OnGet declares h as the handler of method for the event get returns.
// get runs once per instance at Attach time, so each instance can listen
// to its own event.
// Returns the class for method chaining.
//
// Panics if method is empty or get or h is nil.
func OnGet[T, P any](c *Class[T], method string, get func(*T) *eevent.Event[P], h func(*T, context.Context, P) error) *Class[T] {
	if get == nil {
		panic(fmt.Sprintf("binder: %s.%s: event resolver cannot be nil", c.name, method))
	}
	return declare(c, method, "resolver", get, h)
}

func declare[T, P any](c *Class[T], method, event string, get func(*T) *eevent.Event[P], h func(*T, context.Context, P) error) *Class[T] {
	if strings.TrimSpace(method) == "" {
		panic(fmt.Sprintf("binder: %s: method name cannot be empty", c.name))
	}
	if h == nil {
		panic(fmt.Sprintf("binder: %s.%s: handler cannot be nil", c.name, method))
	}

	c.handlers.Register(method, handler[T]{
		event: event,
		bind: func(inst *T) (io.Closer, error) {
			ev := get(inst)
			if ev == nil {
				return nil, ErrNilEvent
			}
			return ev.Then(func(ctx context.Context, payload P) error {
				return h(inst, ctx, payload)
			}), nil
		},
	})
	return c
}

// Attach subscribes inst's handlers and returns the resulting bindings.
// The hierarchy is walked from c up to its root and, for each method name,
// only the most-derived declaration binds. Nothing binds unless c or one
// of its ancestors is marked AutoBind; Attach then returns empty bindings.
//
// If any handler fails to bind, the ones already bound are closed.
func (c *Class[T]) Attach(inst *T) (*Bindings, error) {
	if inst == nil {
		return nil, ErrNilInstance
	}
	b := newBindings()
	if !c.autoBound() {
		return b, nil
	}

	seen := make(map[string]bool)
	var lv level = c
	var cur any = inst
	for lv != nil {
		for _, m := range lv.entries() {
			if seen[m.Name] {
				continue
			}
			seen[m.Name] = true

			closer, err := lv.bindMethod(m.Name, cur)
			if err != nil {
				b.Close()
				return nil, fmt.Errorf("attach %s.%s: %w", lv.className(), m.Name, err)
			}
			b.add(m.Name, closer)
		}

		parent := lv.parentLevel()
		if parent == nil {
			break
		}
		next, err := lv.project(cur)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("attach %s: %w", lv.className(), err)
		}
		lv, cur = parent, next
	}
	return b, nil
}

// Methods returns the resolved handler table: for each method name, the
// most-derived declaration, ordered from c up to the root.
func (c *Class[T]) Methods() []Method {
	var methods []Method
	seen := make(map[string]bool)
	for lv := level(c); lv != nil; lv = lv.parentLevel() {
		for _, m := range lv.entries() {
			if !seen[m.Name] {
				seen[m.Name] = true
				methods = append(methods, m)
			}
		}
	}
	return methods
}

func (c *Class[T]) className() string {
	return c.name
}

func (c *Class[T]) autoBound() bool {
	if c.autoBind {
		return true
	}
	return c.parent != nil && c.parent.autoBound()
}

func (c *Class[T]) parentLevel() level {
	return c.parent
}

func (c *Class[T]) entries() []Method {
	var methods []Method
	c.handlers.Range(func(name string, h handler[T]) bool {
		methods = append(methods, Method{Name: name, Class: c.name, Event: h.event})
		return true
	})
	return methods
}

func (c *Class[T]) bindMethod(name string, inst any) (io.Closer, error) {
	h, ok := c.handlers.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, name)
	}
	return h.bind(inst.(*T))
}

func (c *Class[T]) project(inst any) (any, error) {
	p := c.up(inst.(*T))
	if p == nil {
		return nil, ErrNilInstance
	}
	return p, nil
}
