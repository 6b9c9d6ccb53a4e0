package nutcache

import (
	"context"
	"testing"

	"github.com/Keksclan/nutcache/store"
)

func TestNamespacePool_PrefixesKeys(t *testing.T) {
	s := store.NewMemory()
	ns := NewNamespacePool("users", New(s))
	ctx := t.Context()

	if _, err := Get(ctx, ns, "42", func(context.Context) (string, error) { return "alice", nil }); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, ok, _ := s.GetItem(ctx, "users.42"); !ok {
		t.Fatal("expected the store to hold users.42")
	}
	if ok, _ := ns.Has(ctx, "42"); !ok {
		t.Fatal("Has(42) should be true")
	}
	if err := ns.Delete(ctx, "42"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.GetItem(ctx, "users.42"); ok {
		t.Fatal("Delete should remove users.42")
	}
}

func TestNamespacePool_Isolation(t *testing.T) {
	s := store.NewMemory()
	base := New(s)
	a := NewNamespacePool("a", base)
	b := NewNamespacePool("b", base)
	ctx := t.Context()

	if _, err := Get(ctx, a, "k", func(context.Context) (int, error) { return 1, nil }); err != nil {
		t.Fatalf("a.Get: %v", err)
	}
	if ok, _ := b.Has(ctx, "k"); ok {
		t.Fatal("b must not see a's entry")
	}
	if _, err := Get(ctx, b, "k", func(context.Context) (int, error) { return 2, nil }); err != nil {
		t.Fatalf("b.Get: %v", err)
	}

	if err := a.Clear(ctx); err != nil {
		t.Fatalf("a.Clear: %v", err)
	}
	if ok, _ := a.Has(ctx, "k"); ok {
		t.Fatal("a.Clear should remove a's entry")
	}
	if v, err := Get(ctx, b, "k", mustNotCompute[int](t)); err != nil || v != 2 {
		t.Fatalf("b.Get after a.Clear = %d, %v; want 2 (hit)", v, err)
	}
}

func TestNamespacePool_ClearUsesExactPrefix(t *testing.T) {
	s := store.NewMemory()
	ctx := t.Context()
	for _, k := range []string{"a.x", "a.y.z", "ab.x", "xa.y", "a", "data.a"} {
		if err := s.SetItem(ctx, k, `{"v":1,"d":0}`); err != nil {
			t.Fatal(err)
		}
	}

	if err := NewNamespacePool("a", New(s)).Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	keys, err := store.Keys(ctx, s)
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	want := map[string]bool{"ab.x": true, "xa.y": true, "a": true, "data.a": true}
	if len(keys) != len(want) {
		t.Fatalf("remaining keys = %v", keys)
	}
	for _, k := range keys {
		if !want[k] {
			t.Fatalf("unexpected survivor %q in %v", k, keys)
		}
	}
}

func TestNamespacePool_ClearTwice(t *testing.T) {
	s := store.NewMemory()
	ns := NewNamespacePool("a", New(s))
	ctx := t.Context()

	_, _ = Get(ctx, ns, "k", func(context.Context) (int, error) { return 1, nil })
	for range 2 {
		if err := ns.Clear(ctx); err != nil {
			t.Fatalf("Clear: %v", err)
		}
	}
	if n, _ := s.Len(ctx); n != 0 {
		t.Fatalf("Len = %d, want 0", n)
	}
}

func TestNewNamespacePool_RejectsInvalidNamespace(t *testing.T) {
	for _, ns := range []string{"", "a.b"} {
		func() {
			defer func() {
				if recover() == nil {
					t.Fatalf("NewNamespacePool(%q) should panic", ns)
				}
			}()
			NewNamespacePool(ns, New(store.NewMemory()))
		}()
	}
}
