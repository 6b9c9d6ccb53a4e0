package nutcache

import (
	"log/slog"
	"time"

	"github.com/Keksclan/nutcache/ratelimit"
)

// config holds the CachePool configuration assembled via functional options.
type config struct {
	now     func() time.Time
	logger  *slog.Logger
	limiter *ratelimit.Limiter
}

// Option configures a CachePool.
type Option func(*config)

// WithClock replaces time.Now as the pool's notion of the current time. It
// decides staleness and resolves relative expiries.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the structured logger. By default nothing is logged.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithComputeLimiter makes every miss wait for l before computing. A
// cancelled wait fails the Get with the context error and stores nothing.
func WithComputeLimiter(l *ratelimit.Limiter) Option {
	return func(c *config) {
		c.limiter = l
	}
}
