package config

import (
	"io"

	"github.com/Keksclan/nutcache"
	"github.com/Keksclan/nutcache/breaker"
	"github.com/Keksclan/nutcache/flight"
	"github.com/Keksclan/nutcache/ratelimit"
	"github.com/Keksclan/nutcache/store"
)

// Stack is an assembled cache.
type Stack struct {
	// Chained routes "<namespace>.<key>" to the namespace pools. It is
	// wrapped by flight.Wrap when single_flight is set.
	Chained nutcache.Pool

	// Pool is the CachePool every namespace shares.
	Pool *nutcache.CachePool

	// Store is the backend under Pool, behind a *breaker.Store when a
	// breaker is configured.
	Store store.Store
}

// Build opens the configured store and assembles the pools on top of it.
// opts are passed to nutcache.New after the options derived from cfg.
func Build(cfg *Config, opts ...nutcache.Option) (*Stack, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s, err := openStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	if b := cfg.Store.Breaker; b != nil {
		s = breaker.Wrap(s, breaker.Config{
			FailureThreshold: b.FailureThreshold,
			OpenTimeout:      b.OpenTimeout,
			HalfOpenProbes:   b.HalfOpenProbes,
		})
	}

	var poolOpts []nutcache.Option
	if r := cfg.ComputeRate; r != nil {
		poolOpts = append(poolOpts, nutcache.WithComputeLimiter(ratelimit.NewLimiter(r.PerSecond, r.Burst)))
	}
	base := nutcache.New(s, append(poolOpts, opts...)...)

	pools := make([]*nutcache.NamespacePool, len(cfg.Namespaces))
	for i, ns := range cfg.Namespaces {
		pools[i] = nutcache.NewNamespacePool(ns, base)
	}
	var chained nutcache.Pool = nutcache.NewChainedPool(pools...)
	if cfg.SingleFlight {
		chained = flight.Wrap(chained)
	}
	return &Stack{Chained: chained, Pool: base, Store: s}, nil
}

// Close releases the store if it holds resources.
func (s *Stack) Close() error {
	if c, ok := s.Store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func openStore(c StoreConfig) (store.Store, error) {
	switch c.Kind {
	case KindDir:
		return store.NewDir(c.Path)
	case KindRistretto:
		return store.NewRistretto(c.MaxEntries)
	case KindRedis:
		return store.NewRedis(store.RedisOptions{
			Addr:     c.Addr,
			Password: c.Password,
			DB:       c.DB,
			Prefix:   c.Prefix,
		}), nil
	case KindSQLite:
		return store.OpenSQLite(c.Path)
	default:
		return store.NewMemory(), nil
	}
}
