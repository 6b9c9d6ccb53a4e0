// Package nutcache is a small lookaside cache over a pluggable string
// key/value store.
//
// A caller asks for a key together with a function that computes the value;
// the pool returns the stored value when it is present and fresh, and
// otherwise computes it, persists it with an optional expiry and returns it:
//
//	pool := nutcache.New(store.NewMemory())
//	v, err := nutcache.Get(ctx, pool, "answer", compute, nutcache.WithTTL(10*time.Minute))
//
// Values are stored as a versioned JSON envelope, {"v":1,"d":<value>,"e":<unix ms>},
// where "e" is omitted for entries that never expire.
//
// # Namespaces
//
// A NamespacePool prefixes every key with "<namespace>." so several logical
// caches can share one store and be cleared independently. A ChainedPool
// routes compound keys ("default.jsmith", "ns:1.jsmith") to the pool
// registered for their namespace:
//
//	mem := nutcache.New(store.NewMemory())
//	chain := nutcache.NewChainedPool(
//		nutcache.NewNamespacePool("default", mem),
//		nutcache.NewNamespacePool("ns:1", mem),
//	)
//
// Get on an unknown namespace fails with ErrUnknownNamespace; Has reports
// false and Delete does nothing.
//
// # Concurrency
//
// Pools are safe to share between goroutines as far as their store is, but
// misses are not deduplicated: concurrent misses on one key all compute.
// Wrap a pool with flight.Wrap to collapse them.
package nutcache
