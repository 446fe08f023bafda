package alma

import (
	"context"
	"sync"
	"time"
)

// Pacer enforces a minimum delay between consecutive gateway calls.
// The first call proceeds immediately.
type Pacer struct {
	delay time.Duration
	now   func() time.Time

	mu   sync.Mutex
	last time.Time
}

// NewPacer returns a Pacer spacing calls at least delay apart.
// A non-positive delay disables pacing.
func NewPacer(delay time.Duration) *Pacer {
	return &Pacer{delay: delay, now: time.Now}
}

// Wait blocks until the next call may proceed or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.delay <= 0 {
		return ctx.Err()
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.last.IsZero() {
		if remaining := p.delay - p.now().Sub(p.last); remaining > 0 {
			timer := time.NewTimer(remaining)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	p.last = p.now()
	return nil
}
