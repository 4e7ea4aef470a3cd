package scraper

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Throttle spaces consecutive steps against one source by a fixed delay.
// The first Wait returns immediately. Safe for concurrent use.
type Throttle struct {
	lim *rate.Limiter
}

// NewThrottle returns a Throttle with the given spacing. A non-positive
// delay disables throttling.
func NewThrottle(delay time.Duration) *Throttle {
	if delay <= 0 {
		return &Throttle{lim: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Throttle{lim: rate.NewLimiter(rate.Every(delay), 1)}
}

// Wait blocks until the next step may run or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	return t.lim.Wait(ctx)
}
