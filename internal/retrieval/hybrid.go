package retrieval

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/conversa/ragcore/internal/rcache"
	"github.com/conversa/ragcore/internal/telemetry"
	"github.com/conversa/ragcore/internal/tenant"
)

const rrfK = 60

// HybridSearchRequest is the input to hybrid_search.
type HybridSearchRequest struct {
	SessionID         string
	Query             string
	TenantID          string
	Context           string
	RelationshipTypes []string
	TopK              int
	WeightVector      float64
	WeightGraph       float64
}

// HybridTool implements the hybrid retrieval tool (C5): concurrent C3+C4
// fan-out, fused by Reciprocal Rank Fusion.
type HybridTool struct {
	Vector   *VectorTool
	Graph    *GraphTool
	Cache    *rcache.Cache
	Tenants  *tenant.Registry
	Recorder telemetry.Recorder
}

// Search runs hybrid_search: C3 and C4 execute concurrently; if either
// fails, the whole call fails, with no partial fusion.
func (t *HybridTool) Search(ctx context.Context, req HybridSearchRequest) (HybridResponse, error) {
	start := time.Now()
	topK := req.TopK
	if topK <= 0 {
		topK = 5
	}
	wVec := req.WeightVector
	wGraph := req.WeightGraph
	if wVec == 0 && wGraph == 0 {
		wVec, wGraph = 0.5, 0.5
	}
	if err := t.Tenants.ValidateConsent(ctx, req.TenantID, "retrieve"); err != nil {
		return HybridResponse{}, err
	}

	params := map[string]any{
		"query":              req.Query,
		"tenant_id":          req.TenantID,
		"context":            req.Context,
		"relationship_types": req.RelationshipTypes,
		"top_k":              topK,
		"w_vec":              wVec,
		"w_graph":            wGraph,
	}
	key := rcache.Key("hybrid_search", params)

	var cached HybridResponse
	if t.Cache != nil {
		if hit, err := t.Cache.Get(ctx, key, &cached); err == nil && hit {
			cached.CacheHit = true
			cached.LatencyMS = time.Since(start).Milliseconds()
			t.record(req, len(cached.Items), true, "", start)
			return cached, nil
		}
	}

	resp, err := t.search(ctx, req, topK, wVec, wGraph)
	resp.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		t.record(req, 0, false, err.Error(), start)
		return HybridResponse{}, err
	}
	if t.Cache != nil {
		_ = t.Cache.Set(ctx, key, resp)
	}
	t.record(req, len(resp.Items), true, "", start)
	return resp, nil
}

func (t *HybridTool) search(ctx context.Context, req HybridSearchRequest, topK int, wVec, wGraph float64) (HybridResponse, error) {
	var vecResp VectorResponse
	var graphResp GraphResponse

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		resp, err := t.Vector.Search(gctx, VectorSearchRequest{
			SessionID: req.SessionID,
			Query:     req.Query,
			TenantID:  req.TenantID,
			Context:   req.Context,
			TopK:      topK,
		})
		vecResp = resp
		return err
	})
	g.Go(func() error {
		resp, err := t.Graph.Search(gctx, GraphSearchRequest{
			SessionID:         req.SessionID,
			Query:             req.Query,
			TenantID:          req.TenantID,
			RelationshipTypes: req.RelationshipTypes,
			Limit:             2 * topK,
		})
		graphResp = resp
		return err
	})
	if err := g.Wait(); err != nil {
		return HybridResponse{}, err
	}

	items := fuseRRF(vecResp, graphResp, wVec, wGraph)
	if len(items) > topK {
		items = items[:topK]
	}
	return HybridResponse{Items: items, Vector: vecResp, Graph: graphResp}, nil
}

// fuseRRF combines the vector and graph pools by Reciprocal Rank Fusion.
// The two pools are disjoint key spaces ("chunk:*" vs "node:*"), so no
// cross-pool score summation is needed; ties are broken vector-before-graph,
// then by ascending original rank.
func fuseRRF(vec VectorResponse, graph GraphResponse, wVec, wGraph float64) []FusedItem {
	items := make([]FusedItem, 0, len(vec.Results)+len(graph.Nodes))
	for i, c := range vec.Results {
		rank := i + 1
		c := c
		items = append(items, FusedItem{
			Key:    "chunk:" + c.ChunkID,
			Source: "vector",
			Score:  wVec / float64(rrfK+rank),
			Rank:   rank,
			Chunk:  &c,
		})
	}
	for i, n := range graph.Nodes {
		rank := i + 1
		n := n
		items = append(items, FusedItem{
			Key:    "node:" + n.ID,
			Source: "graph",
			Score:  wGraph / float64(rrfK+rank),
			Rank:   rank,
			Node:   &n,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		if items[i].Source != items[j].Source {
			return items[i].Source == "vector"
		}
		return items[i].Rank < items[j].Rank
	})
	return items
}

func (t *HybridTool) record(req HybridSearchRequest, count int, success bool, errMsg string, start time.Time) {
	if t.Recorder == nil {
		return
	}
	_ = t.Recorder.Record(telemetry.ToolInvocation{
		SessionID:   req.SessionID,
		TenantID:    req.TenantID,
		ToolName:    "hybrid_search",
		QueryText:   req.Query,
		Parameters:  map[string]any{"top_k": req.TopK},
		Success:     success,
		LatencyMS:   time.Since(start).Milliseconds(),
		ResultCount: count,
		Error:       errMsg,
		Timestamp:   start,
	})
}
