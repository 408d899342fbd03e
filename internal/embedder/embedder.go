// Package embedder converts query and chunk text into embedding vectors for
// vector similarity search. Producing the corpus embeddings at ingestion
// time is out of scope; this package embeds retrieval-time queries and
// exposes the same interface a future ingestion pipeline would depend on.
package embedder

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/conversa/ragcore/internal/config"
	"github.com/conversa/ragcore/internal/ratelimit"
)

// Embedder converts text into fixed-dimension embedding vectors.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Name() string
	Dimension() int
}

// deterministicEmbedder hashes byte 3-grams into a fixed-size vector and
// L2-normalizes it. It stands in for a real embedding model so retrieval
// semantics (ranking, fusion, caching) can be exercised and tested without
// a live model endpoint.
type deterministicEmbedder struct {
	dim  int
	seed uint64
	name string
}

// NewDeterministic constructs a deterministic embedder with the given
// dimension and model name (used only for cache-key and telemetry display).
func NewDeterministic(dim int, name string, seed uint64) Embedder {
	if dim <= 0 {
		dim = 256
	}
	if name == "" {
		name = "deterministic"
	}
	return &deterministicEmbedder{dim: dim, seed: seed, name: name}
}

func (d *deterministicEmbedder) Name() string   { return d.name }
func (d *deterministicEmbedder) Dimension() int { return d.dim }

func (d *deterministicEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = d.embedOne(t)
	}
	return out, nil
}

func (d *deterministicEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vs, err := d.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}

func (d *deterministicEmbedder) embedOne(s string) []float32 {
	v := make([]float32, d.dim)
	b := []byte(s)
	if len(b) == 0 {
		return v
	}
	if len(b) < 3 {
		add(d.seed, b, v)
	} else {
		for i := 0; i <= len(b)-3; i++ {
			add(d.seed, b[i:i+3], v)
		}
	}
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum > 0 {
		inv := float32(1.0 / math.Sqrt(sum))
		for i := range v {
			v[i] *= inv
		}
	}
	return v
}

func add(seed uint64, gram []byte, v []float32) {
	h := fnv.New64a()
	if seed != 0 {
		var tmp [8]byte
		for i := 0; i < 8; i++ {
			tmp[i] = byte(seed >> (8 * i))
		}
		_, _ = h.Write(tmp[:])
	}
	_, _ = h.Write(gram)
	hv := h.Sum64()
	idx := int(hv % uint64(len(v)))
	w := float32(int32(hv>>32)) / float32(1<<31)
	v[idx] += w
}

// rateLimited wraps an Embedder with a token-bucket limiter and a retry with
// exponential backoff, per EMBED_RPS/EMBED_MAX_RETRIES.
type rateLimited struct {
	inner   Embedder
	bucket  *ratelimit.Bucket
	backoff ratelimit.BackoffConfig
}

// WithRateLimit bounds calls to inner to cfg.RPS requests per second and
// retries failed calls, making at most cfg.MaxRetries attempts in all.
func WithRateLimit(inner Embedder, cfg config.EmbedConfig) Embedder {
	return &rateLimited{
		inner:   inner,
		bucket:  ratelimit.NewBucket(cfg.RPS, max(1, int(cfg.RPS))),
		backoff: ratelimit.DefaultBackoff(cfg.MaxRetries),
	}
}

func (r *rateLimited) Name() string   { return r.inner.Name() }
func (r *rateLimited) Dimension() int { return r.inner.Dimension() }

func (r *rateLimited) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.bucket.Wait(ctx); err != nil {
		return nil, err
	}
	var out [][]float32
	err := ratelimit.Retry(ctx, r.backoff, func(int) error {
		vs, err := r.inner.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		out = vs
		return nil
	})
	return out, err
}

func (r *rateLimited) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vs, err := r.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
