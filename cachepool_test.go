package nutcache

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Keksclan/nutcache/ratelimit"
	"github.com/Keksclan/nutcache/store"
)

// testClock is a manually advanced clock.
type testClock struct{ t time.Time }

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// counter returns a compute function yielding v and a call counter.
func counter[T any](v T) (func(context.Context) (T, error), *atomic.Int32) {
	var calls atomic.Int32
	return func(context.Context) (T, error) {
		calls.Add(1)
		return v, nil
	}, &calls
}

func mustNotCompute[T any](t *testing.T) func(context.Context) (T, error) {
	return func(context.Context) (T, error) {
		t.Helper()
		t.Fatal("compute must not be called on a hit")
		var zero T
		return zero, nil
	}
}

func TestCachePool_MissThenHit(t *testing.T) {
	p := New(store.NewMemory())
	ctx := t.Context()

	fn, calls := counter("first")
	v, err := Get(ctx, p, "k", fn)
	if err != nil {
		t.Fatalf("Get 1: %v", err)
	}
	if v != "first" {
		t.Fatalf("got %q, want %q", v, "first")
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("compute called %d times, want 1", n)
	}

	v, err = Get(ctx, p, "k", mustNotCompute[string](t))
	if err != nil {
		t.Fatalf("Get 2: %v", err)
	}
	if v != "first" {
		t.Fatalf("got %q, want %q", v, "first")
	}
}

func TestCachePool_TTL(t *testing.T) {
	clk := newTestClock()
	p := New(store.NewMemory(), WithClock(clk.Now))
	ctx := t.Context()

	// Already expired at write time: the next Get is a miss.
	if _, err := Get(ctx, p, "past", func(context.Context) (int, error) { return 1, nil },
		WithExpiresAt(clk.Now().Add(-time.Second))); err != nil {
		t.Fatalf("Get: %v", err)
	}
	fn, calls := counter(2)
	v, err := Get(ctx, p, "past", fn)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != 2 || calls.Load() != 1 {
		t.Fatalf("expected recompute to 2, got %d after %d calls", v, calls.Load())
	}

	// Ten minutes ahead: the next Get is a hit.
	if _, err := Get(ctx, p, "future", func(context.Context) (int, error) { return 3, nil },
		WithExpiresAt(clk.Now().Add(600*time.Second))); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v, err := Get(ctx, p, "future", mustNotCompute[int](t)); err != nil || v != 3 {
		t.Fatalf("Get future = %d, %v; want 3, nil", v, err)
	}
}

func TestCachePool_RelativeTTLUsesClock(t *testing.T) {
	clk := newTestClock()
	p := New(store.NewMemory(), WithClock(clk.Now))
	ctx := t.Context()

	if _, err := Get(ctx, p, "k", func(context.Context) (string, error) { return "v1", nil },
		WithTTL(time.Minute)); err != nil {
		t.Fatalf("Get: %v", err)
	}

	clk.Advance(59 * time.Second)
	if _, err := Get(ctx, p, "k", mustNotCompute[string](t)); err != nil {
		t.Fatalf("Get before expiry: %v", err)
	}

	// Expiry is inclusive: now == expiry is stale.
	clk.Advance(time.Second)
	fn, calls := counter("v2")
	v, err := Get(ctx, p, "k", fn)
	if err != nil {
		t.Fatalf("Get at expiry: %v", err)
	}
	if v != "v2" || calls.Load() != 1 {
		t.Fatalf("expected recompute at expiry, got %q", v)
	}
}

func TestCachePool_NonPositiveTTLIsStale(t *testing.T) {
	p := New(store.NewMemory())
	ctx := t.Context()

	if _, err := Get(ctx, p, "k", func(context.Context) (int, error) { return 1, nil }, WithTTL(0)); err != nil {
		t.Fatalf("Get: %v", err)
	}
	fn, calls := counter(2)
	if _, err := Get(ctx, p, "k", fn); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatal("zero TTL entry should be a miss")
	}
}

func TestCachePool_GetItemExpiry(t *testing.T) {
	p := New(store.NewMemory())
	ctx := t.Context()

	_, err := GetItem(ctx, p, "k", func(context.Context) (Item[string], error) {
		return NewItem("stale").ExpiresAfter(-time.Second), nil
	})
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	v, err := GetItem(ctx, p, "k", func(context.Context) (Item[string], error) {
		return NewItem("fresh").ExpiresAfter(time.Hour), nil
	})
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if v != "fresh" {
		t.Fatalf("got %q, want %q", v, "fresh")
	}

	v, err = GetItem(ctx, p, "k", func(context.Context) (Item[string], error) {
		t.Fatal("compute must not be called on a hit")
		return Item[string]{}, nil
	})
	if err != nil || v != "fresh" {
		t.Fatalf("GetItem hit = %q, %v", v, err)
	}
}

func TestCachePool_GetItemExpiresAfterUsesPoolClock(t *testing.T) {
	clock := newTestClock()
	clock.Advance(24 * time.Hour)
	p := New(store.NewMemory(), WithClock(clock.Now))
	ctx := t.Context()

	var calls atomic.Int32
	load := func(context.Context) (Item[int32], error) {
		return NewItem(calls.Add(1)).ExpiresAfter(time.Hour), nil
	}
	for range 2 {
		if v, err := GetItem(ctx, p, "k", load); err != nil || v != 1 {
			t.Fatalf("GetItem = %d, %v; want 1 (cached)", v, err)
		}
	}
	clock.Advance(59 * time.Minute)
	if v, _ := GetItem(ctx, p, "k", load); v != 1 {
		t.Fatalf("entry should still be fresh after 59m, got %d", v)
	}
	clock.Advance(time.Minute)
	if v, _ := GetItem(ctx, p, "k", load); v != 2 {
		t.Fatalf("entry should be stale after 1h of pool time, got %d", v)
	}
}

func TestCachePool_DeleteAndHas(t *testing.T) {
	p := New(store.NewMemory())
	ctx := t.Context()

	if _, err := Get(ctx, p, "k", func(context.Context) (int, error) { return 1, nil }); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok, err := p.Has(ctx, "k"); err != nil || !ok {
		t.Fatalf("Has = %v, %v; want true", ok, err)
	}
	if err := p.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := p.Has(ctx, "k"); ok {
		t.Fatal("Has after Delete should be false")
	}
	if err := p.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete of absent key: %v", err)
	}

	fn, calls := counter(2)
	if _, err := Get(ctx, p, "k", fn); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatal("Get after Delete should be a miss")
	}
}

func TestCachePool_HasIgnoresExpiry(t *testing.T) {
	p := New(store.NewMemory())
	ctx := t.Context()

	if _, err := Get(ctx, p, "k", func(context.Context) (int, error) { return 1, nil }, WithTTL(-time.Hour)); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok, _ := p.Has(ctx, "k"); !ok {
		t.Fatal("Has must report a stale entry as present")
	}
}

func TestCachePool_ClearIdempotent(t *testing.T) {
	s := store.NewMemory()
	p := New(s)
	ctx := t.Context()

	for _, k := range []string{"a", "b", "c"} {
		if _, err := Get(ctx, p, k, func(context.Context) (string, error) { return k, nil }); err != nil {
			t.Fatalf("Get: %v", err)
		}
	}
	for range 2 {
		if err := p.Clear(ctx); err != nil {
			t.Fatalf("Clear: %v", err)
		}
		if n, _ := s.Len(ctx); n != 0 {
			t.Fatalf("Len after Clear = %d, want 0", n)
		}
	}
}

func TestCachePool_MalformedEnvelopeIsMiss(t *testing.T) {
	var logs bytes.Buffer
	s := store.NewMemory()
	p := New(s, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	ctx := t.Context()

	for _, raw := range []string{`not json`, `{"v":2,"d":1}`, `{"v":1}`, `["x"]`} {
		if err := s.SetItem(ctx, "k", raw); err != nil {
			t.Fatal(err)
		}
		fn, calls := counter(7)
		v, err := Get(ctx, p, "k", fn)
		if err != nil {
			t.Fatalf("Get over %q: %v", raw, err)
		}
		if v != 7 || calls.Load() != 1 {
			t.Fatalf("Get over %q: expected recompute", raw)
		}
		stored, _, _ := s.GetItem(ctx, "k")
		if stored != `{"v":1,"d":7}` {
			t.Fatalf("stored = %s, want overwritten envelope", stored)
		}
	}
	if !strings.Contains(logs.String(), "malformed cache entry") {
		t.Fatalf("expected a warning to be logged, got %q", logs.String())
	}
}

func TestCachePool_UndecodableValueIsMiss(t *testing.T) {
	p := New(store.NewMemory())
	ctx := t.Context()

	if _, err := Get(ctx, p, "k", func(context.Context) (string, error) { return "text", nil }); err != nil {
		t.Fatalf("Get: %v", err)
	}
	// The stored value is a string; asking for an int must recompute.
	fn, calls := counter(5)
	v, err := Get(ctx, p, "k", fn)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != 5 || calls.Load() != 1 {
		t.Fatalf("expected recompute, got %d", v)
	}
}

func TestCachePool_EnvelopeFormat(t *testing.T) {
	clk := newTestClock()
	s := store.NewMemory()
	p := New(s, WithClock(clk.Now))
	ctx := t.Context()

	if _, err := Get(ctx, p, "never", func(context.Context) (string, error) { return "x", nil }); err != nil {
		t.Fatal(err)
	}
	if raw, _, _ := s.GetItem(ctx, "never"); raw != `{"v":1,"d":"x"}` {
		t.Fatalf("never envelope = %s", raw)
	}

	if _, err := Get(ctx, p, "ttl", func(context.Context) (string, error) { return "y", nil }, WithTTL(time.Second)); err != nil {
		t.Fatal(err)
	}
	want := `{"v":1,"d":"y","e":` + strconv.FormatInt(clk.Now().Add(time.Second).UnixMilli(), 10) + `}`
	if raw, _, _ := s.GetItem(ctx, "ttl"); raw != want {
		t.Fatalf("ttl envelope = %s, want %s", raw, want)
	}
}

func TestCachePool_ComputeErrorStoresNothing(t *testing.T) {
	s := store.NewMemory()
	p := New(s)
	ctx := t.Context()
	boom := errors.New("boom")

	_, err := Get(ctx, p, "k", func(context.Context) (int, error) { return 0, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if ok, _ := p.Has(ctx, "k"); ok {
		t.Fatal("a failed compute must not store anything")
	}
}

// failingStore fails every operation with err.
type failingStore struct{ err error }

func (f failingStore) Len(context.Context) (int, error) { return 0, f.err }

func (f failingStore) Key(context.Context, int) (string, bool, error) { return "", false, f.err }

func (f failingStore) GetItem(context.Context, string) (string, bool, error) { return "", false, f.err }

func (f failingStore) SetItem(context.Context, string, string) error { return f.err }

func (f failingStore) RemoveItem(context.Context, string) error { return f.err }

func (f failingStore) Clear(context.Context) error { return f.err }

func TestCachePool_StoreErrorsPropagateUnchanged(t *testing.T) {
	storeErr := errors.New("permission denied")
	p := New(failingStore{err: storeErr})
	ctx := t.Context()

	fn, calls := counter(1)
	if _, err := Get(ctx, p, "k", fn); err != storeErr {
		t.Fatalf("Get err = %v, want the store error itself", err)
	}
	if calls.Load() != 0 {
		t.Fatal("compute must not run when the read fails")
	}
	if _, err := p.Has(ctx, "k"); err != storeErr {
		t.Fatalf("Has err = %v", err)
	}
	if err := p.Delete(ctx, "k"); err != storeErr {
		t.Fatalf("Delete err = %v", err)
	}
	if err := p.Clear(ctx); err != storeErr {
		t.Fatalf("Clear err = %v", err)
	}
}

func TestCachePool_ComputeLimiter(t *testing.T) {
	lim := ratelimit.NewLimiter(0.001, 1)
	p := New(store.NewMemory(), WithComputeLimiter(lim))
	ctx := t.Context()

	if _, err := Get(ctx, p, "a", func(context.Context) (int, error) { return 1, nil }); err != nil {
		t.Fatalf("first miss: %v", err)
	}
	// Hits do not consume tokens.
	if _, err := Get(ctx, p, "a", mustNotCompute[int](t)); err != nil {
		t.Fatalf("hit: %v", err)
	}

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	fn, calls := counter(2)
	if _, err := Get(short, p, "b", fn); err == nil {
		t.Fatal("expected the second miss to be throttled")
	}
	if calls.Load() != 0 {
		t.Fatal("a throttled miss must not compute")
	}
	if ok, _ := p.Has(ctx, "b"); ok {
		t.Fatal("a throttled miss must not store")
	}
}

func TestCachePool_StructValues(t *testing.T) {
	p := New(store.NewMemory())
	ctx := t.Context()
	want := person{First: "John", Last: "Smith", Age: 32}

	if _, err := Get(ctx, p, "jsmith", func(context.Context) (person, error) { return want, nil }); err != nil {
		t.Fatal(err)
	}
	got, err := Get(ctx, p, "jsmith", mustNotCompute[person](t))
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}
