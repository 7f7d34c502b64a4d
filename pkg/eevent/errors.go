package eevent

import "errors"

// Sentinel errors.
var (
	// ErrTimeout indicates WaitTimeout gave up before the event fired.
	ErrTimeout = errors.New("event wait timed out")

	// ErrEmptyRace indicates a Race with no source events was awaited.
	ErrEmptyRace = errors.New("race has no events")
)
