// Package pool provides pooled timers and the bounded, context-aware waits
// built on them. Every suspension point in the link and motion layers goes
// through Sleep or SleepUntil so cancellation is observed uniformly.
package pool

import (
	"context"
	"sync"
	"time"
)

var timerPool sync.Pool

// GetTimer returns a timer firing after d, reusing a pooled one when available.
//
// Return the timer with PutTimer once it is no longer needed.
func GetTimer(d time.Duration) *time.Timer {
	if v := timerPool.Get(); v != nil {
		t, _ := v.(*time.Timer)
		if t.Reset(d) {
			select {
			case <-t.C:
			default:
			}
		}

		return t
	}

	return time.NewTimer(d)
}

// PutTimer stops t and returns it to the pool. t must not be used afterwards.
func PutTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	timerPool.Put(t)
}

// Sleep blocks for d or until ctx is done, whichever comes first.
// It returns ctx.Err() when the context ended the wait.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := GetTimer(d)
	defer PutTimer(t)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SleepUntil blocks until deadline or until ctx is done.
func SleepUntil(ctx context.Context, deadline time.Time) error {
	return Sleep(ctx, time.Until(deadline))
}
