// Package clock provides the cancellation-aware waits shared by every component
// that paces itself against the remote page.
package clock

import (
	"context"
	"time"
)

// Sleeper blocks for d or until ctx is done, whichever comes first.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the production Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
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

// OrDefault returns s, or Sleep when s is nil.
func OrDefault(s Sleeper) Sleeper {
	if s == nil {
		return Sleep
	}
	return s
}
