package rate

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Limiter gates outbound server calls so a purge run does not hammer the
// IMAP server.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Unlimited applies no pacing. It still honors context cancellation.
type Unlimited struct{}

func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }

// Interval enforces a minimum gap between successive calls. The first call
// proceeds immediately.
type Interval struct {
	gap   time.Duration
	clock func() time.Time

	mu   sync.Mutex
	next time.Time
}

// NewInterval returns a limiter that spaces calls at least gap apart.
func NewInterval(gap time.Duration) *Interval {
	if gap < 0 {
		gap = 0
	}
	return &Interval{gap: gap, clock: time.Now}
}

// PerSecond returns a limiter allowing at most rps calls per second.
// rps <= 0 means no pacing.
func PerSecond(rps float64) Limiter {
	if rps <= 0 {
		return Unlimited{}
	}
	return NewInterval(time.Duration(float64(time.Second) / rps))
}

// Wait blocks until the gap since the previous call has elapsed or the
// context is canceled.
func (l *Interval) Wait(ctx context.Context) error {
	l.mu.Lock()
	now := l.clock()
	var wait time.Duration
	if now.Before(l.next) {
		wait = l.next.Sub(now)
		l.next = l.next.Add(l.gap)
	} else {
		l.next = now.Add(l.gap)
	}
	l.mu.Unlock()

	if wait <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("rate wait canceled: %w", ctx.Err())
	case <-t.C:
		return nil
	}
}

// Sleep blocks for d or until ctx is canceled. Used for the cool-down
// between session teardown and reconnect.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("wait canceled: %w", ctx.Err())
	case <-t.C:
		return nil
	}
}

var _ Limiter = (*Interval)(nil)
var _ Limiter = Unlimited{}
