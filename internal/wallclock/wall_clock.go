package wallclock

import (
	"context"
	"time"
)

type (
	// WallClock abstracts the subset of package time the pipeline needs to
	// wait for poll instants and measure windows.
	WallClock interface {
		After(d time.Duration) <-chan time.Time
		Now() time.Time
	}

	wallClock struct{}
)

// After indirects time.After.
func (wallClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// Now indirects time.Now.
func (wallClock) Now() time.Time {
	return time.Now()
}

// System returns the WallClock backed by package time.
func System() WallClock {
	return wallClock{}
}

// Sleep blocks for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, clock WallClock, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}

	select {
	case <-clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SleepUntil computes the delta to t once and sleeps for it.
func SleepUntil(ctx context.Context, clock WallClock, t time.Time) error {
	return Sleep(ctx, clock, t.Sub(clock.Now()))
}
