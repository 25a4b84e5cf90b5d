// Package ratelimit provides a token-bucket rate limiter backed by
// golang.org/x/time/rate. The KV server uses it as a global request gate;
// the load generator uses it to pace client request rates.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter wraps a token-bucket limiter that decides whether a request may
// proceed.
type Limiter struct {
	lim *rate.Limiter
}

// NewLimiter creates a Limiter that permits rps requests per second with the
// given burst size.
func NewLimiter(rps float64, burst int) *Limiter {
	return &Limiter{lim: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Allow reports whether a single request may proceed right now.
func (l *Limiter) Allow() bool {
	return l.lim.Allow()
}

// Wait blocks until a token is available or ctx is done. Used by clients
// that pace themselves instead of dropping requests.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.lim.Wait(ctx)
}
