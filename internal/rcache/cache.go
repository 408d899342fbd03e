// Package rcache implements the shared result cache fronting the vector,
// graph, and hybrid retrieval tools. Keys are derived from the tool name and
// its canonicalized parameters so two calls with equivalent parameters (in
// any field order) collide on the same entry.
package rcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// Store is the pluggable cache backend. The in-process implementation below
// is the default; a redis-backed Store lets CACHE_BACKEND=redis share the
// cache across multiple orchestrator processes.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Len(ctx context.Context) (int, error)
}

// Cache is the process-facing API consumed by C3/C4/C5. It marshals values
// to JSON before handing them to Store and unmarshals on read, so the same
// cache instance fronts every retrieval tool without type parameters.
type Cache struct {
	store      Store
	ttl        time.Duration
	maxEntries int
}

// New constructs a result cache with the given backend, TTL, and capacity.
func New(store Store, ttl time.Duration, maxEntries int) *Cache {
	if ttl <= 0 {
		ttl = 300 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 512
	}
	return &Cache{store: store, ttl: ttl, maxEntries: maxEntries}
}

// Key derives the cache key for toolName invoked with params. params is
// marshaled with its map keys sorted so field order never changes the key.
func Key(toolName string, params map[string]any) string {
	canon := canonicalJSON(params)
	h := sha256.New()
	h.Write([]byte(toolName))
	h.Write([]byte{0})
	h.Write(canon)
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalJSON renders v as JSON with map keys sorted at every level so the
// same logical parameters always serialize identically.
func canonicalJSON(v any) []byte {
	b, err := json.Marshal(sortedValue(v))
	if err != nil {
		return nil
	}
	return b
}

func sortedValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(orderedMap, 0, len(t))
		for _, k := range keys {
			out = append(out, kv{k, sortedValue(t[k])})
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = sortedValue(e)
		}
		return out
	default:
		return t
	}
}

// kv/orderedMap implement a deterministic-order JSON object: encoding/json
// always emits entries in slice order, unlike a Go map.
type kv struct {
	K string
	V any
}
type orderedMap []kv

func (m orderedMap) MarshalJSON() ([]byte, error) {
	b := []byte{'{'}
	for i, e := range m {
		if i > 0 {
			b = append(b, ',')
		}
		kb, _ := json.Marshal(e.K)
		b = append(b, kb...)
		b = append(b, ':')
		vb, err := json.Marshal(e.V)
		if err != nil {
			return nil, err
		}
		b = append(b, vb...)
	}
	b = append(b, '}')
	return b, nil
}

// Get returns a deep copy of the cached value for key, decoded into out.
// The bool result reports whether the entry was present and unexpired.
func (c *Cache) Get(ctx context.Context, key string, out any) (bool, error) {
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, err
	}
	return true, nil
}

// Set stores a deep copy of value (via JSON round-trip) under key.
func (c *Cache) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, key, raw, c.ttl)
}

// Invalidate removes key's entry, if any. Per C2's contract, a miss on an
// already-absent key is not an error.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	return c.store.Delete(ctx, key)
}

// Clear removes every entry from the cache.
func (c *Cache) Clear(ctx context.Context) error {
	return c.store.Clear(ctx)
}

// MaxEntries reports the configured capacity of the process-local backend.
func (c *Cache) MaxEntries() int { return c.maxEntries }
