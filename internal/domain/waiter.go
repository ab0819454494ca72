package domain

import (
	"context"
	"time"
)

// TimerWaiter waits on a real timer.
type TimerWaiter struct{}

// NewTimerWaiter creates a waiter backed by time.Timer (DI constructor).
func NewTimerWaiter() *TimerWaiter {
	return &TimerWaiter{}
}

// Wait blocks for d or until ctx is done.
func (w *TimerWaiter) Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
