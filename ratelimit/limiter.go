// Package ratelimit provides a token-bucket gate, backed by
// golang.org/x/time/rate, that cache pools pass through before computing a
// value on a miss. It bounds how hard a cold or expiring cache can hit the
// origin behind it.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter wraps a token-bucket limiter. A nil *Limiter never blocks.
type Limiter struct {
	lim *rate.Limiter
}

// NewLimiter creates a Limiter that permits perSecond computations per second
// with the given burst size.
func NewLimiter(perSecond float64, burst int) *Limiter {
	return &Limiter{lim: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Wait blocks until a computation may start or ctx is done. It returns the
// context error, or an error when ctx's deadline would pass before a token is
// available.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.lim.Wait(ctx)
}
