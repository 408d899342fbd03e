// Package ratelimit provides a token-bucket limiter and a retry helper with
// exponential backoff and jitter, shared by any client that calls a
// rate-limited upstream (the embedding model, primarily).
package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Bucket is a simple token bucket rate limiter safe for concurrent use.
type Bucket struct {
	capacity   int
	tokens     int
	refillAt   time.Time
	refillRate time.Duration
	mu         sync.Mutex
}

// NewBucket creates a limiter allowing rps requests per second, with bursts
// up to burst tokens.
func NewBucket(rps float64, burst int) *Bucket {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 1
	}
	refillRate := time.Duration(float64(time.Second) / rps)
	return &Bucket{
		capacity:   burst,
		tokens:     burst,
		refillAt:   time.Now(),
		refillRate: refillRate,
	}
}

func (b *Bucket) takeToken() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	if now.After(b.refillAt) {
		elapsed := now.Sub(b.refillAt)
		add := int(elapsed / b.refillRate)
		if add > 0 {
			b.tokens = min(b.capacity, b.tokens+add)
			b.refillAt = b.refillAt.Add(time.Duration(add) * b.refillRate)
		}
	}
	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

// Wait blocks until a token is available or ctx is done.
func (b *Bucket) Wait(ctx context.Context) error {
	for {
		if b.takeToken() {
			return nil
		}
		b.mu.Lock()
		wait := time.Until(b.refillAt)
		b.mu.Unlock()
		if wait <= 0 {
			wait = b.refillRate
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// BackoffConfig parameterizes the retry helper.
type BackoffConfig struct {
	MaxRetries    int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	JitterPercent float64
}

// DefaultBackoff mirrors the defaults used elsewhere in the codebase for
// outbound calls to rate-limited third-party services.
func DefaultBackoff(maxRetries int) BackoffConfig {
	return BackoffConfig{
		MaxRetries:    maxRetries,
		BaseDelay:     250 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		JitterPercent: 0.3,
	}
}

// Retry calls fn until it succeeds, ctx is done, or MaxRetries attempts are
// exhausted, backing off exponentially with jitter between attempts.
func Retry(ctx context.Context, cfg BackoffConfig, fn func(attempt int) error) error {
	var lastErr error
	attempts := cfg.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		if err := fn(attempt); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if attempt == attempts-1 {
			break
		}
		delay := cfg.BaseDelay * (1 << attempt)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
		jitter := time.Duration(float64(delay) * cfg.JitterPercent * rand.Float64())
		delay += jitter
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}
