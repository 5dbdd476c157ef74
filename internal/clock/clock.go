// Package clock abstracts wall-clock time behind a small interface with a real and a
// settable fake implementation. No other package in this module imports it.
package clock

import "time"

// Clock returns the current time. NewReal returns the time.Now-backed implementation;
// FakeClock is the settable one.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

// NewReal returns a Clock backed by time.Now.
func NewReal() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}
