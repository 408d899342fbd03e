package ragtools

import (
	"context"
	"encoding/json"

	"github.com/conversa/ragcore/internal/retrieval"
)

// HybridSearchTool exposes C5 as the "hybrid_search" tool.
type HybridSearchTool struct {
	Tool      *retrieval.HybridTool
	TenantID  string
	SessionID string
}

func (t *HybridSearchTool) Name() string { return "hybrid_search" }

func (t *HybridSearchTool) JSONSchema() map[string]any {
	return map[string]any{
		"name":        t.Name(),
		"description": "Run vector and graph search concurrently and fuse the results by Reciprocal Rank Fusion. Prefer this over calling vector_search and graph_search separately.",
		"parameters": map[string]any{
			"type":     "object",
			"required": []string{"query"},
			"properties": map[string]any{
				"query":              map[string]any{"type": "string"},
				"context":            map[string]any{"type": "string"},
				"relationship_types": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"top_k":              map[string]any{"type": "integer"},
			},
		},
	}
}

func (t *HybridSearchTool) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	var args struct {
		Query             string   `json:"query"`
		Context           string   `json:"context"`
		RelationshipTypes []string `json:"relationship_types"`
		TopK              int      `json:"top_k"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	return t.Tool.Search(ctx, retrieval.HybridSearchRequest{
		SessionID:         t.SessionID,
		Query:             args.Query,
		TenantID:          t.TenantID,
		Context:           args.Context,
		RelationshipTypes: args.RelationshipTypes,
		TopK:              args.TopK,
	})
}
