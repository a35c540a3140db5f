package core

import "time"

// Clock supplies the current time. Controllers take one so tests can drive
// timers with a simulated clock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }
