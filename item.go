package nutcache

import "time"

// Item is a value paired with its expiry. Compute callbacks passed to
// GetItem return an Item to choose the expiry of the value they produce.
//
// Item is an immutable value: ExpiresAt and ExpiresAfter return modified
// copies. The zero Item holds the zero value and never expires.
type Item[T any] struct {
	Value  T
	expiry Expiry
}

// NewItem returns an Item holding v that never expires.
func NewItem[T any](v T) Item[T] {
	return Item[T]{Value: v}
}

// ExpiresAt returns a copy of i expiring at t. The zero time means never.
func (i Item[T]) ExpiresAt(t time.Time) Item[T] {
	i.expiry = ExpireAt(t)
	return i
}

// ExpiresAfter returns a copy of i expiring d after it is stored. The pool
// resolves d against its own clock when writing the entry. A non-positive d
// yields an item that is already expired.
func (i Item[T]) ExpiresAfter(d time.Duration) Item[T] {
	i.expiry = ExpireAfter(d)
	return i
}

// Never returns a copy of i that never expires.
func (i Item[T]) Never() Item[T] {
	i.expiry = ExpireNever()
	return i
}

// Expiry returns the item's expiry.
func (i Item[T]) Expiry() Expiry { return i.expiry }

// IsExpired reports whether the item's expiry is concrete and has passed.
func (i Item[T]) IsExpired() bool {
	return i.expiry.Expired(time.Now())
}
