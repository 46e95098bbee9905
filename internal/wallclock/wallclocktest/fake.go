// Package wallclocktest provides a manually driven clock for tests.
package wallclocktest

import (
	"sync"
	"time"
)

// Fake is a wallclock.WallClock whose time only moves when a caller sleeps
// on it or calls Advance.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

func New(start time.Time) *Fake {
	return &Fake{now: start}
}

// After advances the clock by d and returns an already fired channel.
func (f *Fake) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	if d > 0 {
		f.now = f.now.Add(d)
	}

	ch := make(chan time.Time, 1)
	ch <- f.now
	return ch
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.now
}

// Advance moves the clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.now = f.now.Add(d)
}
