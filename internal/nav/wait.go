package nav

import (
	"context"
	"time"
)

// Await polls predicate every interval until it returns true or timeout
// elapses. It reports whether the predicate became true. Context
// cancellation counts as a timeout: the driver treats both as a soft
// signal, never a hard failure.
//
// SPA navigation has no page-load event to key off, so every wait in the
// driver is a bounded poll against a DOM/URL predicate; fixed sleeps are
// used only as secondary settle padding.
func Await(ctx context.Context, timeout, interval time.Duration, predicate func() bool) bool {
	if predicate() {
		return true
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return false
		case <-tick.C:
			if predicate() {
				return true
			}
		}
	}
}

// pause sleeps for d, returning early if ctx is cancelled.
func pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
