package nutcache

import "errors"

var (
	// ErrUnknownNamespace is returned by ChainedPool.Get when the compound
	// key names a namespace with no registered pool. It signals a
	// configuration mistake, not a cache miss.
	ErrUnknownNamespace = errors.New("nutcache: unknown namespace")

	// ErrMalformedKey is returned by ChainedPool.Get for a key without the
	// "<namespace>.<key>" separator.
	ErrMalformedKey = errors.New("nutcache: malformed compound key")
)
