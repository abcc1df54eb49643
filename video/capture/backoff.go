package capture

import (
	"context"
	"time"
)

// Backoff is the retry policy applied after a transport failure.
type Backoff struct {
	// Interval is the delay before the first retry.
	Interval time.Duration
	// Factor multiplies the delay after each consecutive failure. Values
	// below 1 keep the delay fixed.
	Factor float64
	// MaxInterval caps the delay. Zero means no cap.
	MaxInterval time.Duration
	// MaxAttempts bounds consecutive failures. Zero retries forever.
	MaxAttempts int
}

// DefaultBackoff retries forever, once per second.
var DefaultBackoff = Backoff{Interval: time.Second}

// Next returns the delay to wait before retrying after the given number of
// consecutive failures (starting at 1). ok is false once MaxAttempts has
// been exceeded.
func (b Backoff) Next(attempt int) (delay time.Duration, ok bool) {
	if b.MaxAttempts > 0 && attempt > b.MaxAttempts {
		return 0, false
	}
	delay = b.Interval
	if b.Factor > 1 {
		for i := 1; i < attempt; i++ {
			delay = time.Duration(float64(delay) * b.Factor)
			if b.MaxInterval > 0 && delay >= b.MaxInterval {
				break
			}
		}
	}
	if b.MaxInterval > 0 && delay > b.MaxInterval {
		delay = b.MaxInterval
	}
	return delay, true
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
