package nutcache

import (
	"context"
	"fmt"
	"strings"
)

// ChainedPool multiplexes NamespacePools behind compound keys of the form
// "<namespace>.<key>". The key is split on the first Separator, so local keys
// may themselves contain dots.
//
// The pool list is fixed at construction. Duplicate namespaces are not
// rejected; the first registered pool wins.
type ChainedPool struct {
	pools []*NamespacePool
}

var _ Pool = (*ChainedPool)(nil)

// NewChainedPool creates a ChainedPool over pools, in registration order.
func NewChainedPool(pools ...*NamespacePool) *ChainedPool {
	return &ChainedPool{pools: pools}
}

// GetPool returns the first pool registered under namespace.
func (c *ChainedPool) GetPool(namespace string) (*NamespacePool, bool) {
	for _, p := range c.pools {
		if p.Namespace() == namespace {
			return p, true
		}
	}
	return nil, false
}

// Namespaces lists the registered namespaces in registration order.
func (c *ChainedPool) Namespaces() []string {
	out := make([]string, len(c.pools))
	for i, p := range c.pools {
		out[i] = p.Namespace()
	}
	return out
}

// SplitKey splits a compound key on its first Separator.
func SplitKey(key string) (namespace, local string, ok bool) {
	return strings.Cut(key, Separator)
}

// resolve finds the pool and local key for a compound key.
func (c *ChainedPool) resolve(key string) (*NamespacePool, string, error) {
	ns, local, ok := SplitKey(key)
	if !ok {
		return nil, "", fmt.Errorf("%w: %q", ErrMalformedKey, key)
	}
	p, ok := c.GetPool(ns)
	if !ok {
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownNamespace, ns)
	}
	return p, local, nil
}

// Get routes to the namespace's pool. An unresolvable key is an error, never
// a miss; f is not invoked.
func (c *ChainedPool) Get(ctx context.Context, key string, f Filler) error {
	p, local, err := c.resolve(key)
	if err != nil {
		return err
	}
	return p.Get(ctx, local, f)
}

// Delete routes to the namespace's pool. An unresolvable key is a no-op.
func (c *ChainedPool) Delete(ctx context.Context, key string) error {
	p, local, err := c.resolve(key)
	if err != nil {
		return nil
	}
	return p.Delete(ctx, local)
}

// Has routes to the namespace's pool. An unresolvable key reports false.
func (c *ChainedPool) Has(ctx context.Context, key string) (bool, error) {
	p, local, err := c.resolve(key)
	if err != nil {
		return false, nil
	}
	return p.Has(ctx, local)
}

// Clear clears every pool in registration order and stops at the first
// error.
func (c *ChainedPool) Clear(ctx context.Context) error {
	for _, p := range c.pools {
		if err := p.Clear(ctx); err != nil {
			return err
		}
	}
	return nil
}
