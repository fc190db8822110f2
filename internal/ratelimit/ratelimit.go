// Package ratelimit paces JSON-RPC calls against a per-minute budget.
package ratelimit

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
)

// Limiter wraps rate.Limiter with a per-minute budget and reports how long
// each caller was held back.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a limiter allowing requestsPerMinute calls with a burst of 10%
// of the budget. A non-positive budget disables limiting.
func New(requestsPerMinute int) *Limiter {
	if requestsPerMinute <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}

	rps := float64(requestsPerMinute) / 60.0
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}

	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Wait blocks until the call may proceed and returns the time spent
// waiting. It fails fast when ctx's deadline comes before the next slot.
func (l *Limiter) Wait(ctx context.Context) (time.Duration, error) {
	res := l.limiter.Reserve()
	if !res.OK() {
		return 0, errors.New("ratelimit: reservation exceeds burst")
	}

	delay := res.Delay()
	if delay == 0 {
		return 0, nil
	}

	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < delay {
		res.Cancel()
		return 0, context.DeadlineExceeded
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return delay, nil
	case <-ctx.Done():
		res.Cancel()
		return 0, ctx.Err()
	}
}
