// Package store defines the minimal string key/value contract that cache
// pools persist their envelopes into, along with the bundled backends:
// an ephemeral in-process map, a bounded ristretto-backed L1, a directory
// of files, Redis and SQLite.
package store

import "context"

// Store is an ordered key/value store with string keys and string values.
//
// Enumeration order (Key) is backend-defined but must be stable between calls
// when the store is not mutated. Absent keys are reported through the boolean
// results, never through an error; errors are reserved for backend failures.
type Store interface {
	// Len returns the number of stored entries.
	Len(ctx context.Context) (int, error)

	// Key returns the key at the given enumeration position. The boolean is
	// false when index is out of range.
	Key(ctx context.Context, index int) (string, bool, error)

	// GetItem returns the value stored under key.
	GetItem(ctx context.Context, key string) (string, bool, error)

	// SetItem stores value under key, replacing any previous value.
	SetItem(ctx context.Context, key, value string) error

	// RemoveItem deletes key. Removing an absent key is a no-op.
	RemoveItem(ctx context.Context, key string) error

	// Clear removes every entry.
	Clear(ctx context.Context) error
}

// Keys collects every key currently in s by walking Len and Key. The
// snapshot is taken before the caller mutates the store, so removing the
// returned keys one by one is safe.
func Keys(ctx context.Context, s Store) ([]string, error) {
	n, err := s.Len(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, n)
	for i := range n {
		k, ok, err := s.Key(ctx, i)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		keys = append(keys, k)
	}
	return keys, nil
}
