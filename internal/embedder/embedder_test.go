package embedder

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/conversa/ragcore/internal/config"
)

func TestDeterministicEmbedderIsStableAndNormalized(t *testing.T) {
	e := NewDeterministic(32, "test-model", 7)
	v1, err := e.EmbedQuery(context.Background(), "hola mundo")
	if err != nil {
		t.Fatalf("EmbedQuery: %v", err)
	}
	v2, err := e.EmbedQuery(context.Background(), "hola mundo")
	if err != nil {
		t.Fatalf("EmbedQuery: %v", err)
	}
	for i := range v1 {
		if v1[i] != v2[i] {
			t.Fatalf("embedding is not deterministic at index %d: %v != %v", i, v1, v2)
		}
	}
	var sum float64
	for _, x := range v1 {
		sum += float64(x) * float64(x)
	}
	if math.Abs(math.Sqrt(sum)-1) > 1e-6 {
		t.Errorf("expected unit-norm vector, got norm %v", math.Sqrt(sum))
	}
}

func TestDeterministicEmbedderDiffersByText(t *testing.T) {
	e := NewDeterministic(32, "test-model", 7)
	a, _ := e.EmbedQuery(context.Background(), "pain in the chest")
	b, _ := e.EmbedQuery(context.Background(), "follow-up appointment")
	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Errorf("expected distinct embeddings for distinct inputs")
	}
}

func TestWithRateLimitRetriesTransientFailures(t *testing.T) {
	calls := 0
	flaky := flakyEmbedder{fail: 2, inner: NewDeterministic(8, "flaky", 1), calls: &calls}
	rl := WithRateLimit(flaky, config.EmbedConfig{RPS: 1000, MaxRetries: 5})
	v, err := rl.EmbedQuery(context.Background(), "test")
	if err != nil {
		t.Fatalf("EmbedQuery: %v", err)
	}
	if len(v) != 8 {
		t.Errorf("len(v) = %d, want 8", len(v))
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (2 failures + 1 success)", calls)
	}
}

type flakyEmbedder struct {
	fail  int
	inner Embedder
	calls *int
}

func (f flakyEmbedder) Name() string   { return f.inner.Name() }
func (f flakyEmbedder) Dimension() int { return f.inner.Dimension() }
func (f flakyEmbedder) EmbedQuery(ctx context.Context, s string) ([]float32, error) {
	vs, err := f.EmbedBatch(ctx, []string{s})
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}
func (f flakyEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	*f.calls++
	if *f.calls <= f.fail {
		return nil, errors.New("transient upstream error")
	}
	return f.inner.EmbedBatch(ctx, texts)
}
