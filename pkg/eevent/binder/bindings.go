package binder

import (
	"errors"
	"io"

	"github.com/randalmurphal/eevent/pkg/eevent/registry"
)

// Bindings holds the subscriptions Attach created for one instance, keyed
// by method name. Store it on the instance and close it when the instance
// is done.
type Bindings struct {
	binds *registry.Ordered[string, io.Closer]
}

func newBindings() *Bindings {
	return &Bindings{binds: registry.New[string, io.Closer]()}
}

func (b *Bindings) add(method string, c io.Closer) {
	b.binds.Register(method, c)
}

// Has reports whether method was bound.
func (b *Bindings) Has(method string) bool {
	return b.binds.Has(method)
}

// Len returns the number of bound methods.
func (b *Bindings) Len() int {
	return b.binds.Len()
}

// Names returns the bound method names, most-derived class first.
func (b *Bindings) Names() []string {
	return b.binds.Keys()
}

// Close closes every subscription. It is idempotent.
func (b *Bindings) Close() error {
	var errs []error
	for _, c := range b.binds.Values() {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	b.binds.Clear()
	return errors.Join(errs...)
}
