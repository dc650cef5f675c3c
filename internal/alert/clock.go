package alert

import (
	"context"
	"sync"
	"time"
)

// Clock supplies the loop's notion of now and its only suspension point.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// WallClock is the real clock.
type WallClock struct{}

func (WallClock) Now() time.Time { return time.Now().UTC() }

// Sleep blocks for d or until ctx is cancelled.
func (WallClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SimClock replays time from a fixed start. Each Sleep advances it by Step
// (or by the requested duration when Step is zero) without waiting.
type SimClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func NewSimClock(start time.Time, step time.Duration) *SimClock {
	return &SimClock{now: start.UTC(), step: step}
}

func (c *SimClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *SimClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.step > 0 {
		d = c.step
	}
	c.now = c.now.Add(d)
	return nil
}
