package retrieval

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/conversa/ragcore/internal/apperr"
	"github.com/conversa/ragcore/internal/embedder"
	"github.com/conversa/ragcore/internal/persistence/databases"
	"github.com/conversa/ragcore/internal/rcache"
	"github.com/conversa/ragcore/internal/telemetry"
	"github.com/conversa/ragcore/internal/tenant"
)

// VectorSearchRequest is the input to vector_search.
type VectorSearchRequest struct {
	SessionID string
	Query     string
	TenantID  string
	Context   string // optional document-metadata equality filter
	TopK      int
}

// VectorTool implements the vector retrieval tool (C3).
type VectorTool struct {
	Embedder embedder.Embedder
	Store    databases.VectorStore
	Cache    *rcache.Cache
	Tenants  *tenant.Registry
	Recorder telemetry.Recorder
}

// Search runs vector_search, per C3's contract: cache lookup, embed,
// similarity search scoped to the tenant's namespace, then materialize and
// order results.
func (t *VectorTool) Search(ctx context.Context, req VectorSearchRequest) (VectorResponse, error) {
	start := time.Now()
	topK := req.TopK
	if topK <= 0 {
		topK = 5
	}

	if req.Query == "" {
		return VectorResponse{}, apperr.New(apperr.InvalidArgument, "vector_search", "query must not be empty")
	}
	if topK < 1 || topK > 50 {
		return VectorResponse{}, apperr.New(apperr.InvalidArgument, "vector_search", "top_k must be between 1 and 50")
	}
	if err := t.Tenants.ValidateConsent(ctx, req.TenantID, "retrieve"); err != nil {
		return VectorResponse{}, err
	}

	params := map[string]any{
		"query":     req.Query,
		"tenant_id": req.TenantID,
		"context":   req.Context,
		"top_k":     topK,
	}
	key := rcache.Key("vector_search", params)

	var cached VectorResponse
	if t.Cache != nil {
		if hit, err := t.Cache.Get(ctx, key, &cached); err == nil && hit {
			cached.CacheHit = true
			cached.LatencyMS = time.Since(start).Milliseconds()
			t.record(req, cached.TotalFound, true, "", start)
			return cached, nil
		}
	}

	resp, err := t.search(ctx, req, topK)
	resp.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		t.record(req, 0, false, err.Error(), start)
		return VectorResponse{}, err
	}
	if t.Cache != nil {
		_ = t.Cache.Set(ctx, key, resp)
	}
	t.record(req, resp.TotalFound, true, "", start)
	return resp, nil
}

func (t *VectorTool) search(ctx context.Context, req VectorSearchRequest, topK int) (VectorResponse, error) {
	vec, err := t.Embedder.EmbedQuery(ctx, req.Query)
	if err != nil {
		return VectorResponse{}, apperr.Wrap(apperr.BackendFailed, "vector_search", "embedding failed", err)
	}

	filter := map[string]string{"tenant_id": req.TenantID}
	if req.Context != "" {
		filter["context"] = req.Context
	}
	results, err := t.Store.SimilaritySearch(ctx, vec, topK, filter)
	if err != nil {
		return VectorResponse{}, apperr.Wrap(apperr.BackendFailed, "vector_search", "vector backend is unavailable", err)
	}

	chunks := make([]Chunk, 0, len(results))
	for _, r := range results {
		chunks = append(chunks, toChunk(r))
	}
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].Similarity != chunks[j].Similarity {
			return chunks[i].Similarity > chunks[j].Similarity
		}
		if chunks[i].DocumentID != chunks[j].DocumentID {
			return chunks[i].DocumentID < chunks[j].DocumentID
		}
		return chunks[i].ChunkIndex < chunks[j].ChunkIndex
	})
	if len(chunks) > topK {
		chunks = chunks[:topK]
	}

	return VectorResponse{Results: chunks, TotalFound: len(results)}, nil
}

// toChunk maps a raw vector-store hit into the materialized Chunk shape.
// Similarity is reported as 1 − distance, i.e. the cosine score itself;
// an orthogonal chunk (cosine 0) reads 0, not 0.5.
func toChunk(r databases.VectorResult) Chunk {
	similarity := r.Score
	if similarity < 0 {
		similarity = 0
	}
	if similarity > 1 {
		similarity = 1
	}
	idx, _ := strconv.Atoi(r.Metadata["chunk_index"])
	var page *int
	if p, ok := r.Metadata["page"]; ok {
		if n, err := strconv.Atoi(p); err == nil {
			page = &n
		}
	}
	return Chunk{
		ChunkID:    r.ID,
		DocumentID: r.Metadata["document_id"],
		ChunkIndex: idx,
		Content:    r.Metadata["content"],
		Similarity: similarity,
		Page:       page,
		Section:    r.Metadata["section"],
		Metadata:   r.Metadata,
	}
}

func (t *VectorTool) record(req VectorSearchRequest, count int, success bool, errMsg string, start time.Time) {
	if t.Recorder == nil {
		return
	}
	_ = t.Recorder.Record(telemetry.ToolInvocation{
		SessionID:   req.SessionID,
		TenantID:    req.TenantID,
		ToolName:    "vector_search",
		QueryText:   req.Query,
		Parameters:  map[string]any{"top_k": req.TopK, "context": req.Context},
		Success:     success,
		LatencyMS:   time.Since(start).Milliseconds(),
		ResultCount: count,
		Error:       errMsg,
		Timestamp:   start,
	})
}
