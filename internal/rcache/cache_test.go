package rcache

import (
	"context"
	"testing"
	"time"
)

type payload struct {
	Count int      `json:"count"`
	Items []string `json:"items"`
}

func TestKeyIsOrderInsensitive(t *testing.T) {
	k1 := Key("vector_search", map[string]any{"tenant_id": "T1", "top_k": 3, "query": "hola"})
	k2 := Key("vector_search", map[string]any{"query": "hola", "top_k": 3, "tenant_id": "T1"})
	if k1 != k2 {
		t.Fatalf("expected identical keys regardless of map field order: %s != %s", k1, k2)
	}
}

func TestKeyDiffersByToolOrParams(t *testing.T) {
	base := Key("vector_search", map[string]any{"tenant_id": "T1"})
	other := Key("graph_search", map[string]any{"tenant_id": "T1"})
	if base == other {
		t.Fatalf("expected different keys for different tool names")
	}
	diffParam := Key("vector_search", map[string]any{"tenant_id": "T2"})
	if base == diffParam {
		t.Fatalf("expected different keys for different params")
	}
}

func TestGetSetRoundTripsDeepCopy(t *testing.T) {
	c := New(NewMemoryStore(8), time.Minute, 8)
	key := Key("vector_search", map[string]any{"tenant_id": "T1"})
	in := payload{Count: 3, Items: []string{"c1", "c2", "c3"}}
	if err := c.Set(context.Background(), key, in); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var out payload
	ok, err := c.Get(context.Background(), key, &out)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if out.Count != 3 || len(out.Items) != 3 {
		t.Fatalf("out = %+v, want a deep copy of %+v", out, in)
	}

	// Mutating the decoded value must not affect the stored entry.
	out.Items[0] = "mutated"
	var out2 payload
	_, _ = c.Get(context.Background(), key, &out2)
	if out2.Items[0] == "mutated" {
		t.Fatalf("expected Get to return an independent copy each time")
	}
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	s := NewMemoryStore(8)
	if err := s.Set(context.Background(), "k", []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	_, ok, err := s.Get(context.Background(), "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatalf("expected entry to have expired")
	}
}

func TestCacheInvalidateRemovesOnlyThatKey(t *testing.T) {
	c := New(NewMemoryStore(8), time.Minute, 8)
	ctx := context.Background()
	k1 := Key("vector_search", map[string]any{"tenant_id": "T1"})
	k2 := Key("vector_search", map[string]any{"tenant_id": "T2"})
	_ = c.Set(ctx, k1, payload{Count: 1})
	_ = c.Set(ctx, k2, payload{Count: 2})

	if err := c.Invalidate(ctx, k1); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}

	var out payload
	if ok, _ := c.Get(ctx, k1, &out); ok {
		t.Fatalf("expected k1 to be gone after Invalidate")
	}
	if ok, _ := c.Get(ctx, k2, &out); !ok {
		t.Fatalf("expected k2 to survive Invalidate(k1)")
	}
}

func TestCacheInvalidateOfMissingKeyIsNotAnError(t *testing.T) {
	c := New(NewMemoryStore(8), time.Minute, 8)
	if err := c.Invalidate(context.Background(), "does-not-exist"); err != nil {
		t.Fatalf("Invalidate of a missing key should not error, got %v", err)
	}
}

func TestCacheClearRemovesEverything(t *testing.T) {
	store := NewMemoryStore(8)
	c := New(store, time.Minute, 8)
	ctx := context.Background()
	_ = c.Set(ctx, "a", payload{Count: 1})
	_ = c.Set(ctx, "b", payload{Count: 2})

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	n, err := store.Len(ctx)
	if err != nil {
		t.Fatalf("Len: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 entries after Clear, got %d", n)
	}
}

func TestMemoryStoreEvictsLeastRecentlyUsed(t *testing.T) {
	s := NewMemoryStore(2)
	ctx := context.Background()
	_ = s.Set(ctx, "a", []byte("1"), time.Minute)
	_ = s.Set(ctx, "b", []byte("2"), time.Minute)
	// Touch "a" so "b" becomes the least recently used entry.
	_, _, _ = s.Get(ctx, "a")
	_ = s.Set(ctx, "c", []byte("3"), time.Minute)

	if _, ok, _ := s.Get(ctx, "b"); ok {
		t.Fatalf("expected b to be evicted as least recently used")
	}
	if _, ok, _ := s.Get(ctx, "a"); !ok {
		t.Fatalf("expected a to survive eviction")
	}
	if _, ok, _ := s.Get(ctx, "c"); !ok {
		t.Fatalf("expected c to be present")
	}
}
