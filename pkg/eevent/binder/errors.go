package binder

import "errors"

// Sentinel errors.
var (
	// ErrNilInstance indicates Attach received a nil instance, or a parent
	// projection returned nil.
	ErrNilInstance = errors.New("nil instance")

	// ErrNilEvent indicates an OnGet resolver returned a nil event.
	ErrNilEvent = errors.New("event resolver returned nil")

	// ErrUnknownMethod indicates a handler table entry vanished during Attach.
	ErrUnknownMethod = errors.New("unknown method")
)
