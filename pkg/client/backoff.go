package client

import (
	"context"
	"math/rand/v2"
	"time"
)

// ReadBackoff decides how long a GET waits before its nth retry (1-based).
// Writes are never retried, so a ReadBackoff only ever paces reads.
type ReadBackoff interface {
	Delay(retry int) time.Duration
}

// DoublingBackoff waits First before the first retry and twice as long
// before each following one, never more than Ceiling. Each wait is moved
// by up to Spread of itself in either direction so that clients retrying
// the same outage do not hit the daemon in lockstep.
type DoublingBackoff struct {
	First   time.Duration
	Ceiling time.Duration
	Spread  float64
}

// DefaultReadBackoff returns the backoff used by NewClient: 100ms doubling
// up to 2s, spread by 20%.
func DefaultReadBackoff() DoublingBackoff {
	return DoublingBackoff{First: 100 * time.Millisecond, Ceiling: 2 * time.Second, Spread: 0.2}
}

func (b DoublingBackoff) Delay(retry int) time.Duration {
	d := b.First
	for n := 1; n < retry && d < b.Ceiling; n++ {
		d *= 2
	}
	d = min(d, b.Ceiling)
	if b.Spread > 0 {
		d = time.Duration(float64(d) * (1 + b.Spread*(2*rand.Float64()-1)))
	}
	return max(d, 0)
}

// waitForRetry sleeps before the given retry of a read, or returns early
// with the context's error.
func waitForRetry(ctx context.Context, b ReadBackoff, retry int) error {
	t := time.NewTimer(b.Delay(retry))
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
