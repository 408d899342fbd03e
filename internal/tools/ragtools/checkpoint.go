package ragtools

import (
	"context"
	"encoding/json"

	"github.com/conversa/ragcore/internal/checkpoint"
)

// CheckpointLookupTool exposes C6 as the "checkpoint_lookup" tool.
type CheckpointLookupTool struct {
	Lookup   *checkpoint.Lookup
	TenantID string
}

func (t *CheckpointLookupTool) Name() string { return "checkpoint_lookup" }

func (t *CheckpointLookupTool) JSONSchema() map[string]any {
	return map[string]any{
		"name":        t.Name(),
		"description": "List the tenant's governance checkpoints recorded for a pipeline stage, most recent first.",
		"parameters": map[string]any{
			"type":     "object",
			"required": []string{"stage"},
			"properties": map[string]any{
				"stage": map[string]any{
					"type": "string",
					"enum": []string{"ingestion", "ocr", "consolidation", "retrieval", "agent"},
				},
				"limit": map[string]any{"type": "integer", "description": "Maximum checkpoints to return (default 10)"},
			},
		},
	}
}

func (t *CheckpointLookupTool) Call(_ context.Context, raw json.RawMessage) (any, error) {
	var args struct {
		Stage string `json:"stage"`
		Limit int    `json:"limit"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	return t.Lookup.Find(t.TenantID, checkpoint.Stage(args.Stage), args.Limit)
}
