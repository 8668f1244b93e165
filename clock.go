package sessionauth

import "time"

// Clock supplies the current time when a request leaves Now zero.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (e *Engine) now(at time.Time) time.Time {
	if !at.IsZero() {
		return at
	}
	return e.clock.Now()
}
