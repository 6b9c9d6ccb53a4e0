// Package flight collapses concurrent misses on the same key into a single
// computation. The core pools do not deduplicate; wrap one with Wrap when
// the computation is expensive enough that a stampede matters.
package flight

import (
	"context"

	"github.com/Keksclan/nutcache"
	"golang.org/x/sync/singleflight"
)

// Pool deduplicates concurrent Get calls per key. Delete, Has and Clear pass
// straight through.
type Pool struct {
	next  nutcache.Pool
	group singleflight.Group
}

var _ nutcache.Pool = (*Pool)(nil)

// Wrap returns a Pool in front of next.
func Wrap(next nutcache.Pool) *Pool {
	return &Pool{next: next}
}

// capture records the encoded value that the leading caller resolved, so
// followers can decode it with their own Filler.
type capture struct {
	leader nutcache.Filler
	data   []byte
}

func (c *capture) Decode(data []byte) error {
	if err := c.leader.Decode(data); err != nil {
		return err
	}
	c.data = data
	return nil
}

func (c *capture) Compute(ctx context.Context) ([]byte, nutcache.Expiry, error) {
	data, exp, err := c.leader.Compute(ctx)
	if err == nil {
		c.data = data
	}
	return data, exp, err
}

// Get runs one underlying Get per key at a time. The caller that starts it
// leads: its Filler decides hit or miss and computes. Callers arriving while
// it runs share the leader's result, decoded into their own Filler. The
// leader's context governs the shared call. A follower that cannot decode
// the shared value treats it as a miss and runs its own Get.
func (p *Pool) Get(ctx context.Context, key string, f nutcache.Filler) error {
	c := &capture{leader: f}
	v, err, _ := p.group.Do(key, func() (any, error) {
		if err := p.next.Get(ctx, key, c); err != nil {
			return nil, err
		}
		return c.data, nil
	})
	if err != nil {
		return err
	}
	if c.data != nil {
		// This caller led; its Filler already holds the value.
		return nil
	}
	if err := f.Decode(v.([]byte)); err != nil {
		return p.next.Get(ctx, key, f)
	}
	return nil
}

func (p *Pool) Delete(ctx context.Context, key string) error {
	return p.next.Delete(ctx, key)
}

func (p *Pool) Has(ctx context.Context, key string) (bool, error) {
	return p.next.Has(ctx, key)
}

func (p *Pool) Clear(ctx context.Context) error {
	return p.next.Clear(ctx)
}
