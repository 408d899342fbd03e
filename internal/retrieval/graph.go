package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/conversa/ragcore/internal/apperr"
	"github.com/conversa/ragcore/internal/persistence/databases"
	"github.com/conversa/ragcore/internal/rcache"
	"github.com/conversa/ragcore/internal/telemetry"
	"github.com/conversa/ragcore/internal/tenant"
)

// GraphSearchRequest is the input to graph_search.
type GraphSearchRequest struct {
	SessionID         string
	Query             string
	TenantID          string
	RelationshipTypes []string
	Limit             int
}

// GraphTool implements the graph retrieval tool (C4).
type GraphTool struct {
	Store    databases.GraphDB
	Cache    *rcache.Cache
	Tenants  *tenant.Registry
	Recorder telemetry.Recorder
}

// Search runs graph_search: a relationship query bounded to the tenant's
// namespace, deduplicated by node id in discovery order.
func (t *GraphTool) Search(ctx context.Context, req GraphSearchRequest) (GraphResponse, error) {
	start := time.Now()
	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}
	if err := t.Tenants.ValidateConsent(ctx, req.TenantID, "retrieve"); err != nil {
		return GraphResponse{}, err
	}

	params := map[string]any{
		"query":              req.Query,
		"tenant_id":          req.TenantID,
		"relationship_types": req.RelationshipTypes,
		"limit":              limit,
	}
	key := rcache.Key("graph_search", params)

	var cached GraphResponse
	if t.Cache != nil {
		if hit, err := t.Cache.Get(ctx, key, &cached); err == nil && hit {
			cached.CacheHit = true
			cached.LatencyMS = time.Since(start).Milliseconds()
			t.record(req, cached.TotalNodes, true, "", start)
			return cached, nil
		}
	}

	resp, err := t.search(ctx, req, limit)
	resp.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		t.record(req, 0, false, err.Error(), start)
		return GraphResponse{}, err
	}
	if t.Cache != nil {
		_ = t.Cache.Set(ctx, key, resp)
	}
	t.record(req, resp.TotalNodes, true, "", start)
	return resp, nil
}

func (t *GraphTool) search(ctx context.Context, req GraphSearchRequest, limit int) (GraphResponse, error) {
	nodes, edges, err := t.Store.Query(ctx, req.TenantID, req.RelationshipTypes, strings.ToLower(req.Query), limit)
	if err != nil {
		return GraphResponse{}, apperr.Wrap(apperr.BackendFailed, "graph_search", "graph backend is unavailable", err)
	}

	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, toNode(n))
	}
	outEdges := make([]Edge, 0, len(edges))
	for _, e := range edges {
		outEdges = append(outEdges, Edge{SourceID: e.SourceID, Type: e.Rel, TargetID: e.TargetID})
	}
	return GraphResponse{
		Nodes:      out,
		Edges:      outEdges,
		TotalNodes: len(out),
		TotalEdges: len(outEdges),
	}, nil
}

func toNode(n databases.Node) Node {
	name, _ := n.Props["name"].(string)
	nn, _ := n.Props["name_normalized"].(string)
	return Node{ID: n.ID, Labels: n.Labels, Name: name, NameNormalized: nn, Props: n.Props}
}

func (t *GraphTool) record(req GraphSearchRequest, count int, success bool, errMsg string, start time.Time) {
	if t.Recorder == nil {
		return
	}
	_ = t.Recorder.Record(telemetry.ToolInvocation{
		SessionID:   req.SessionID,
		TenantID:    req.TenantID,
		ToolName:    "graph_search",
		QueryText:   req.Query,
		Parameters:  map[string]any{"limit": req.Limit, "relationship_types": fmt.Sprint(req.RelationshipTypes)},
		Success:     success,
		LatencyMS:   time.Since(start).Milliseconds(),
		ResultCount: count,
		Error:       errMsg,
		Timestamp:   start,
	})
}
