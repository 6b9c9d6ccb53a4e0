package store

import (
	"context"
	"slices"
	"sync"

	"github.com/dgraph-io/ristretto/v2"
)

// ristrettoEntry keeps the original key next to the value because ristretto
// only hands hashed keys to its eviction callbacks.
type ristrettoEntry struct {
	key   string
	value string
	seq   uint64
}

// Ristretto is a bounded in-process Store backed by ristretto. Entries may be
// evicted, and writes dropped or refused admission, once maxEntries is
// reached or under contention; such an entry simply reads as absent, which a
// cache pool treats as a miss.
//
// Ristretto cannot enumerate its contents, so an insertion-ordered key index
// is kept alongside it and pruned from the OnEvict/OnReject callbacks.
type Ristretto struct {
	rc *ristretto.Cache[string, ristrettoEntry]

	mu    sync.Mutex
	seq   uint64
	order []string
	index map[string]uint64 // key -> seq of the live write
}

// NewRistretto creates a Ristretto store holding at most maxEntries entries
// (each entry has a cost of 1).
//
// ristretto may drop a write under contention or refuse it at admission.
// SetItem still returns nil in that case: the key is simply absent (or keeps
// its previous value), so the next Get on it is a miss and recomputes. The
// key index only lists keys whose latest write was admitted.
func NewRistretto(maxEntries int64) (*Ristretto, error) {
	r := &Ristretto{index: make(map[string]uint64)}
	rc, err := ristretto.NewCache(&ristretto.Config[string, ristrettoEntry]{
		NumCounters:        maxEntries * 10,
		MaxCost:            maxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true,
		OnEvict:            r.onDrop,
		OnReject:           r.onDrop,
	})
	if err != nil {
		return nil, err
	}
	r.rc = rc
	return r, nil
}

// onDrop runs on ristretto's goroutine (or inside Clear, under ristretto's
// own locks), so it must not call back into the cache. The sequence number
// tells a stale drop apart from one for the current write of the key.
func (r *Ristretto) onDrop(item *ristretto.Item[ristrettoEntry]) {
	r.forget(item.Value.key, item.Value.seq)
}

func (r *Ristretto) remember(key string, seq uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.index[key]; !ok {
		r.order = append(r.order, key)
	}
	r.index[key] = seq
}

// forget drops key from the index. A zero seq matches any write.
func (r *Ristretto) forget(key string, seq uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.index[key]
	if !ok || (seq != 0 && cur != seq) {
		return
	}
	delete(r.index, key)
	if i := slices.Index(r.order, key); i >= 0 {
		r.order = slices.Delete(r.order, i, i+1)
	}
}

func (r *Ristretto) Len(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order), nil
}

func (r *Ristretto) Key(_ context.Context, index int) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index < 0 || index >= len(r.order) {
		return "", false, nil
	}
	return r.order[index], true, nil
}

func (r *Ristretto) GetItem(_ context.Context, key string) (string, bool, error) {
	e, ok := r.rc.Get(key)
	if !ok {
		r.forget(key, 0)
		return "", false, nil
	}
	return e.value, true, nil
}

// SetItem waits for ristretto's buffers to drain so the value is readable as
// soon as SetItem returns.
func (r *Ristretto) SetItem(_ context.Context, key, value string) error {
	r.mu.Lock()
	r.seq++
	seq := r.seq
	r.mu.Unlock()

	if !r.rc.Set(key, ristrettoEntry{key: key, value: value, seq: seq}, 1) {
		return nil
	}
	r.rc.Wait()
	if e, ok := r.rc.Get(key); ok && e.seq == seq {
		r.remember(key, seq)
	}
	return nil
}

func (r *Ristretto) RemoveItem(_ context.Context, key string) error {
	r.rc.Del(key)
	r.forget(key, 0)
	return nil
}

func (r *Ristretto) Clear(_ context.Context) error {
	r.rc.Clear()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = nil
	r.index = make(map[string]uint64)
	return nil
}

// Close stops ristretto's background goroutines.
func (r *Ristretto) Close() error {
	r.rc.Close()
	return nil
}
