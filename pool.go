package nutcache

import (
	"context"
	"time"
)

// Pool is the capability set shared by CachePool, NamespacePool,
// ChainedPool and the decorators in the flight, metrics and tracing
// packages.
type Pool interface {
	// Get resolves key: on a hit the stored value is handed to f.Decode; on a
	// miss (absent, stale, or undecodable entry) f.Compute produces a fresh
	// value which is stored before Get returns.
	Get(ctx context.Context, key string, f Filler) error

	// Delete removes key. Deleting an absent key is a no-op.
	Delete(ctx context.Context, key string) error

	// Has reports whether any entry is stored under key, stale or not.
	Has(ctx context.Context, key string) (bool, error)

	// Clear removes every entry in the pool's scope.
	Clear(ctx context.Context) error
}

// Filler connects a typed caller to a Pool, which only deals in encoded
// values. Get and GetItem provide the usual implementation.
type Filler interface {
	// Decode receives the encoded value of a hit. An error turns the hit
	// into a miss.
	Decode(data []byte) error

	// Compute produces the encoded value and its expiry on a miss.
	Compute(ctx context.Context) ([]byte, Expiry, error)
}

// GetOption configures a single Get or GetItem call.
type GetOption func(*getOptions)

type getOptions struct {
	expiry Expiry
	codec  Codec
}

// WithTTL expires the computed value d after it is stored. A non-positive d
// stores a value that is already stale.
func WithTTL(d time.Duration) GetOption {
	return func(o *getOptions) { o.expiry = ExpireAfter(d) }
}

// WithExpiresAt expires the computed value at the absolute instant t.
func WithExpiresAt(t time.Time) GetOption {
	return func(o *getOptions) { o.expiry = ExpireAt(t) }
}

// WithExpiry sets the expiry of the computed value.
func WithExpiry(e Expiry) GetOption {
	return func(o *getOptions) { o.expiry = e }
}

// WithCodec overrides the value codec (JSONCodec by default).
func WithCodec(c Codec) GetOption {
	return func(o *getOptions) {
		if c != nil {
			o.codec = c
		}
	}
}

func buildGetOptions(opts []GetOption) getOptions {
	o := getOptions{codec: JSONCodec{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// filler is the generic Filler behind Get and GetItem.
type filler[T any] struct {
	codec   Codec
	compute func(ctx context.Context) (T, Expiry, error)
	value   T
}

func (f *filler[T]) Decode(data []byte) error {
	var v T
	if err := f.codec.Unmarshal(data, &v); err != nil {
		return err
	}
	f.value = v
	return nil
}

func (f *filler[T]) Compute(ctx context.Context) ([]byte, Expiry, error) {
	v, exp, err := f.compute(ctx)
	if err != nil {
		return nil, Expiry{}, err
	}
	data, err := f.codec.Marshal(v)
	if err != nil {
		return nil, Expiry{}, err
	}
	f.value = v
	return data, exp, nil
}

// Get returns the value cached under key in p, calling fn to compute and
// store it on a miss. The stored value expires per WithTTL, WithExpiresAt or
// WithExpiry; without one it never expires.
//
//	user, err := nutcache.Get(ctx, pool, "default.jsmith", loadUser, nutcache.WithTTL(time.Minute))
func Get[T any](ctx context.Context, p Pool, key string, fn func(context.Context) (T, error), opts ...GetOption) (T, error) {
	o := buildGetOptions(opts)
	f := &filler[T]{
		codec: o.codec,
		compute: func(ctx context.Context) (T, Expiry, error) {
			v, err := fn(ctx)
			return v, o.expiry, err
		},
	}
	if err := p.Get(ctx, key, f); err != nil {
		var zero T
		return zero, err
	}
	return f.value, nil
}

// GetItem is like Get, but fn returns an Item whose expiry governs the stored
// value. Expiry options are ignored; WithCodec still applies.
func GetItem[T any](ctx context.Context, p Pool, key string, fn func(context.Context) (Item[T], error), opts ...GetOption) (T, error) {
	o := buildGetOptions(opts)
	f := &filler[T]{
		codec: o.codec,
		compute: func(ctx context.Context) (T, Expiry, error) {
			it, err := fn(ctx)
			return it.Value, it.Expiry(), err
		},
	}
	if err := p.Get(ctx, key, f); err != nil {
		var zero T
		return zero, err
	}
	return f.value, nil
}
