package nutcache

import "time"

type expiryKind uint8

const (
	expiryNever expiryKind = iota
	expiryAt
	expiryAfter
)

// Expiry describes when a cache entry goes stale. The zero value never
// expires.
//
// An absolute expiry is fixed when constructed; a relative one (ExpireAfter)
// is resolved against the pool clock when the entry is written.
type Expiry struct {
	kind expiryKind
	at   time.Time
	ttl  time.Duration
}

// ExpireNever returns an Expiry that never elapses.
func ExpireNever() Expiry { return Expiry{} }

// ExpireAt returns an Expiry at the absolute instant t. The zero time means
// never.
func ExpireAt(t time.Time) Expiry {
	if t.IsZero() {
		return Expiry{}
	}
	return Expiry{kind: expiryAt, at: t}
}

// ExpireAfter returns an Expiry d after the moment the entry is written. A
// non-positive d produces an entry that is already stale.
func ExpireAfter(d time.Duration) Expiry {
	return Expiry{kind: expiryAfter, ttl: d}
}

// IsNever reports whether e never elapses.
func (e Expiry) IsNever() bool { return e.kind == expiryNever }

// Resolve returns the absolute expiry instant relative to now, or the zero
// time for an Expiry that never elapses.
func (e Expiry) Resolve(now time.Time) time.Time {
	switch e.kind {
	case expiryAt:
		return e.at
	case expiryAfter:
		return now.Add(e.ttl)
	default:
		return time.Time{}
	}
}

// Expired reports whether e has elapsed at now, i.e. now >= expiry. Relative
// expiries are resolved against now itself, so only a non-positive TTL is
// expired.
func (e Expiry) Expired(now time.Time) bool {
	at := e.Resolve(now)
	if at.IsZero() {
		return false
	}
	return !now.Before(at)
}

func (e Expiry) String() string {
	switch e.kind {
	case expiryAt:
		return "at " + e.at.Format(time.RFC3339Nano)
	case expiryAfter:
		return "after " + e.ttl.String()
	default:
		return "never"
	}
}
