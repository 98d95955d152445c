package telemeter

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter paces requests to the metrics API
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a token bucket limiter allowing rps queries per
// second with a burst of twice that. A non-positive rps disables limiting.
func NewRateLimiter(rps int) *RateLimiter {
	if rps <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), rps*2),
	}
}

// Wait blocks until the rate limiter allows an action
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil {
		return nil
	}
	return r.limiter.Wait(ctx)
}

// Allow checks if an action is allowed without blocking
func (r *RateLimiter) Allow() bool {
	if r == nil {
		return true
	}
	return r.limiter.Allow()
}
