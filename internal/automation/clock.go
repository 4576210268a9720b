package automation

import "time"

// Clock supplies the current time. It is injected into the engine so that
// time-window evaluation and energy aggregation are deterministic in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time {
	return time.Now()
}
