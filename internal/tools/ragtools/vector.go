// Package ragtools adapts C3-C6 to the tools.Tool interface so the
// orchestrator (C10) can expose them to a completion model as native
// function-calling tools.
package ragtools

import (
	"context"
	"encoding/json"

	"github.com/conversa/ragcore/internal/retrieval"
)

// VectorSearchTool exposes C3 as the "vector_search" tool, scoped to a
// single request's tenant and session.
type VectorSearchTool struct {
	Tool      *retrieval.VectorTool
	TenantID  string
	SessionID string
}

func (t *VectorSearchTool) Name() string { return "vector_search" }

func (t *VectorSearchTool) JSONSchema() map[string]any {
	return map[string]any{
		"name":        t.Name(),
		"description": "Search the tenant's document chunks by semantic similarity.",
		"parameters": map[string]any{
			"type":     "object",
			"required": []string{"query"},
			"properties": map[string]any{
				"query":   map[string]any{"type": "string", "description": "Natural-language search query"},
				"context": map[string]any{"type": "string", "description": "Optional document-metadata equality filter"},
				"top_k":   map[string]any{"type": "integer", "description": "Maximum results to return (default 5)"},
			},
		},
	}
}

func (t *VectorSearchTool) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	var args struct {
		Query   string `json:"query"`
		Context string `json:"context"`
		TopK    int    `json:"top_k"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	return t.Tool.Search(ctx, retrieval.VectorSearchRequest{
		SessionID: t.SessionID,
		Query:     args.Query,
		TenantID:  t.TenantID,
		Context:   args.Context,
		TopK:      args.TopK,
	})
}
