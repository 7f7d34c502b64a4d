// Package registry provides a generic, insertion-ordered registry for values
// indexed by key.
//
// Ordered keeps the order in which keys were first registered. Replacing the
// value of an existing key keeps its position; deleting and registering it
// again moves it to the end. This is what an event needs for its
// subscriptions (callbacks run in registration order) and what a binder
// class needs for its annotation table (bindings are created in declaration
// order).
//
// # Basic Usage
//
//	r := registry.New[string, int]()
//	r.Register("one", 1)
//	r.Register("two", 2)
//
//	r.Keys() // [one two]
//
// # Snapshots
//
// Range and Values iterate over a snapshot taken when the call starts, so
// callers may Register or Delete during iteration without skipping or
// repeating entries of the current pass:
//
//	r.Range(func(key string, value int) bool {
//	    if value < 0 {
//	        r.Delete(key) // does not affect the current pass
//	    }
//	    return true
//	})
//
// # Thread Safety
//
// All methods are safe for concurrent use.
package registry
