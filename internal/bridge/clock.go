package bridge

import "time"

// Clock abstracts the time source so the supervisor's bounded waits can
// be tested deterministically without real delays.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// realClock is the production Clock.
type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }
