package clock

import "time"

// Clock allows injecting time into services and background jobs.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// NewSystem returns a clock backed by time.Now in UTC.
func NewSystem() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

type fixedClock struct {
	now time.Time
}

// NewFixed returns a clock that always reports the same instant (useful for tests).
func NewFixed(t time.Time) Clock {
	return fixedClock{now: t.UTC()}
}

func (f fixedClock) Now() time.Time {
	return f.now
}

// Stepping is a mutable clock for tests that need to move time forward
// between calls. Not safe for concurrent use with Advance.
type Stepping struct {
	now time.Time
}

// NewStepping returns a clock starting at t that advances only via Advance.
func NewStepping(t time.Time) *Stepping {
	return &Stepping{now: t.UTC()}
}

func (s *Stepping) Now() time.Time {
	return s.now
}

// Advance moves the clock forward by d.
func (s *Stepping) Advance(d time.Duration) {
	s.now = s.now.Add(d)
}
