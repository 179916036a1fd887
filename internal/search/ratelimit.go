package search

import (
	"context"
	"sync"
	"time"
)

// rateGate spaces provider calls a fixed interval apart. Safe for
// concurrent use: each caller reserves the next free slot under the
// lock, then waits for it outside the lock, so concurrent searches
// queue instead of racing on a shared timestamp.
type rateGate struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
}

func newRateGate(interval time.Duration) *rateGate {
	return &rateGate{interval: interval}
}

// wait blocks until the caller's reserved slot arrives, or returns the
// context error if ctx is done first.
func (g *rateGate) wait(ctx context.Context) error {
	g.mu.Lock()
	slot := g.next
	if now := time.Now(); slot.Before(now) {
		slot = now
	}
	g.next = slot.Add(g.interval)
	g.mu.Unlock()

	delay := time.Until(slot)
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
