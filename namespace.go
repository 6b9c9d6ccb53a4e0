package nutcache

import (
	"context"
	"strings"

	"github.com/Keksclan/nutcache/store"
)

// Separator joins a namespace and a local key into a compound key.
const Separator = "."

// NamespacePool scopes a CachePool to one namespace so several logical caches
// can share a physical store. Every key is rewritten to "<namespace>.<key>"
// before being delegated.
type NamespacePool struct {
	namespace string
	prefix    string
	pool      *CachePool
}

var _ Pool = (*NamespacePool)(nil)

// NewNamespacePool wraps p in namespace. The namespace must be non-empty and
// must not contain Separator, since ChainedPool routes on the first one; an
// invalid namespace panics.
func NewNamespacePool(namespace string, p *CachePool) *NamespacePool {
	if namespace == "" || strings.Contains(namespace, Separator) {
		panic("nutcache: invalid namespace " + `"` + namespace + `"`)
	}
	return &NamespacePool{
		namespace: namespace,
		prefix:    namespace + Separator,
		pool:      p,
	}
}

// Namespace returns the pool's namespace.
func (n *NamespacePool) Namespace() string { return n.namespace }

func (n *NamespacePool) key(k string) string { return n.prefix + k }

func (n *NamespacePool) Get(ctx context.Context, key string, f Filler) error {
	return n.pool.Get(ctx, n.key(key), f)
}

func (n *NamespacePool) Delete(ctx context.Context, key string) error {
	return n.pool.Delete(ctx, n.key(key))
}

func (n *NamespacePool) Has(ctx context.Context, key string) (bool, error) {
	return n.pool.Has(ctx, n.key(key))
}

// Clear removes only this namespace's entries. The store has no prefix
// query, so this scans every stored key: O(n) in the store's total size.
// Matching is by exact "<namespace>." prefix.
func (n *NamespacePool) Clear(ctx context.Context) error {
	s := n.pool.Store()
	keys, err := store.Keys(ctx, s)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if !strings.HasPrefix(k, n.prefix) {
			continue
		}
		if err := s.RemoveItem(ctx, k); err != nil {
			return err
		}
	}
	return nil
}
