package nutcache

import (
	"context"
	"log/slog"
	"time"

	"github.com/Keksclan/nutcache/ratelimit"
	"github.com/Keksclan/nutcache/store"
)

// CachePool implements get-or-compute-and-store against a single store.
//
// The read-check-compute-write sequence in Get is not locked: two concurrent
// misses on the same key both compute and the last write wins. Wrap the pool
// with flight.Wrap when computations must be deduplicated.
type CachePool struct {
	store   store.Store
	now     func() time.Time
	logger  *slog.Logger
	limiter *ratelimit.Limiter
}

var _ Pool = (*CachePool)(nil)

// New creates a CachePool persisting into s.
func New(s store.Store, opts ...Option) *CachePool {
	cfg := config{
		now:    time.Now,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(&cfg)
	}
	return &CachePool{
		store:   s,
		now:     cfg.now,
		logger:  cfg.logger,
		limiter: cfg.limiter,
	}
}

// Store returns the underlying store.
func (p *CachePool) Store() store.Store { return p.store }

// Get hands the stored value for key to f.Decode when a fresh entry exists.
// Otherwise (absent, stale, malformed, or rejected by f.Decode) it calls
// f.Compute and writes the result before returning. Store errors are returned
// unchanged.
func (p *CachePool) Get(ctx context.Context, key string, f Filler) error {
	raw, ok, err := p.store.GetItem(ctx, key)
	if err != nil {
		return err
	}
	if ok && p.hit(ctx, key, raw, f) {
		return nil
	}
	return p.fill(ctx, key, f)
}

// hit reports whether raw is a fresh entry that f accepted.
func (p *CachePool) hit(ctx context.Context, key, raw string, f Filler) bool {
	data, at, err := decodeEnvelope(raw)
	if err != nil {
		p.logger.WarnContext(ctx, "discarding malformed cache entry", "key", key, "error", err)
		return false
	}
	if stale(at, p.now()) {
		p.logger.DebugContext(ctx, "cache entry expired", "key", key, "expired_at", at)
		return false
	}
	if err := f.Decode(data); err != nil {
		p.logger.WarnContext(ctx, "discarding undecodable cache entry", "key", key, "error", err)
		return false
	}
	p.logger.DebugContext(ctx, "cache hit", "key", key)
	return true
}

func (p *CachePool) fill(ctx context.Context, key string, f Filler) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	data, exp, err := f.Compute(ctx)
	if err != nil {
		return err
	}
	raw, err := encodeEnvelope(data, exp.Resolve(p.now()))
	if err != nil {
		return err
	}
	if err := p.store.SetItem(ctx, key, raw); err != nil {
		return err
	}
	p.logger.DebugContext(ctx, "cache miss stored", "key", key, "expiry", exp.String())
	return nil
}

// Delete removes key from the store.
func (p *CachePool) Delete(ctx context.Context, key string) error {
	return p.store.RemoveItem(ctx, key)
}

// Has reports whether the store holds an entry for key. Staleness is not
// consulted.
func (p *CachePool) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := p.store.GetItem(ctx, key)
	return ok, err
}

// Clear removes every entry from the underlying store.
func (p *CachePool) Clear(ctx context.Context) error {
	return p.store.Clear(ctx)
}
