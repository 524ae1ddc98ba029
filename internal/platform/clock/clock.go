// Package clock abstracts time so that components with deadlines and expiry
// can be driven deterministically in tests.
package clock

import "time"

// Clock tells the time and creates timers.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) Timer
}

// Timer is the subset of *time.Timer used by callers.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// Real is a Clock backed by the time package.
type Real struct{}

// New returns the wall clock.
func New() Clock { return Real{} }

// Now returns the current time in UTC.
func (Real) Now() time.Time { return time.Now().UTC() }

// NewTimer wraps time.NewTimer.
func (Real) NewTimer(d time.Duration) Timer {
	return realTimer{t: time.NewTimer(d)}
}

type realTimer struct {
	t *time.Timer
}

func (r realTimer) C() <-chan time.Time { return r.t.C }
func (r realTimer) Stop() bool          { return r.t.Stop() }
