package typewriter

import "time"

// Clock abstracts wall-clock time so the character pacing and the rate-limit
// window can be driven deterministically in tests.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// SystemClock returns the real-time clock.
func SystemClock() Clock { return systemClock{} }
