package ragtools

import (
	"context"
	"encoding/json"

	"github.com/conversa/ragcore/internal/retrieval"
)

// GraphSearchTool exposes C4 as the "graph_search" tool.
type GraphSearchTool struct {
	Tool      *retrieval.GraphTool
	TenantID  string
	SessionID string
}

func (t *GraphSearchTool) Name() string { return "graph_search" }

func (t *GraphSearchTool) JSONSchema() map[string]any {
	return map[string]any{
		"name":        t.Name(),
		"description": "Search the tenant's knowledge graph for entities and relationships matching a query.",
		"parameters": map[string]any{
			"type":     "object",
			"required": []string{"query"},
			"properties": map[string]any{
				"query":              map[string]any{"type": "string"},
				"relationship_types": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"limit":              map[string]any{"type": "integer", "description": "Maximum nodes to return (default 20)"},
			},
		},
	}
}

func (t *GraphSearchTool) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	var args struct {
		Query             string   `json:"query"`
		RelationshipTypes []string `json:"relationship_types"`
		Limit             int      `json:"limit"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	return t.Tool.Search(ctx, retrieval.GraphSearchRequest{
		SessionID:         t.SessionID,
		Query:             args.Query,
		TenantID:          t.TenantID,
		RelationshipTypes: args.RelationshipTypes,
		Limit:             args.Limit,
	})
}
