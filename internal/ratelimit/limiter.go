// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ratelimit spaces outbound API calls to a fixed maximum rate.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Limiter enforces a minimum interval between permitted calls. A token
// bucket with a burst of one gives exactly that: a caller that arrives
// later than the interval passes straight through, and a caller that
// arrives early waits only for the remaining deficit.
//
// Limiter is safe for concurrent use.
type Limiter struct {
	limiter  *rate.Limiter
	interval time.Duration
}

// New creates a Limiter permitting requestsPerSecond calls per second. A
// non-positive rate disables limiting.
func New(requestsPerSecond float64) *Limiter {
	if requestsPerSecond <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Limiter{
		limiter:  rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		interval: time.Duration(float64(time.Second) / requestsPerSecond),
	}
}

// Wait blocks until the next call is permitted. It returns an error only
// when ctx is done before the wait completes.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// Interval returns the minimum spacing between calls, or zero when
// limiting is disabled.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}
