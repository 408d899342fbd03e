package ragtools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/conversa/ragcore/internal/checkpoint"
	"github.com/conversa/ragcore/internal/embedder"
	"github.com/conversa/ragcore/internal/persistence/databases"
	"github.com/conversa/ragcore/internal/rcache"
	"github.com/conversa/ragcore/internal/retrieval"
	"github.com/conversa/ragcore/internal/tenant"
)

func seedTenants(t *testing.T, tenantID string, ops ...string) *tenant.Registry {
	t.Helper()
	store := tenant.NewMemoryStore()
	if err := store.Put(context.Background(), tenant.Tenant{
		TenantID: tenantID, DisplayName: "Test Co", Active: true,
		Consent: tenant.Consent{AllowedOps: ops},
	}); err != nil {
		t.Fatalf("seed tenant: %v", err)
	}
	return tenant.NewRegistry(store, time.Hour)
}

func TestVectorSearchToolDispatchesThroughJSON(t *testing.T) {
	store := databases.NewMemoryVector()
	vt := &retrieval.VectorTool{
		Embedder: embedder.NewDeterministic(32, "det", 1),
		Store:    store,
		Cache:    rcache.New(rcache.NewMemoryStore(8), time.Minute, 8),
		Tenants:  seedTenants(t, "T1", "retrieve"),
	}
	vec, err := vt.Embedder.EmbedQuery(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if err := store.Upsert(context.Background(), "c1", vec, map[string]string{
		"tenant_id": "T1", "document_id": "d1", "chunk_index": "0", "content": "hello world",
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	tool := &VectorSearchTool{Tool: vt, TenantID: "T1", SessionID: "s1"}
	if tool.Name() != "vector_search" {
		t.Fatalf("Name() = %s", tool.Name())
	}
	schema := tool.JSONSchema()
	if schema["name"] != "vector_search" {
		t.Fatalf("schema name = %v", schema["name"])
	}

	raw, _ := json.Marshal(map[string]any{"query": "hello world", "top_k": 5})
	out, err := tool.Call(context.Background(), raw)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	resp, ok := out.(retrieval.VectorResponse)
	if !ok {
		t.Fatalf("unexpected response type %T", out)
	}
	if len(resp.Results) != 1 || resp.Results[0].ChunkID != "c1" {
		t.Fatalf("resp.Results = %+v", resp.Results)
	}
}

func TestVectorSearchToolRejectsCrossTenantArgsAtSourceNotTrust(t *testing.T) {
	// The tool is constructed with a fixed TenantID from the orchestrator's
	// session context; nothing in the model-supplied JSON can override it.
	store := databases.NewMemoryVector()
	vt := &retrieval.VectorTool{
		Embedder: embedder.NewDeterministic(32, "det", 1),
		Store:    store,
		Cache:    rcache.New(rcache.NewMemoryStore(8), time.Minute, 8),
		Tenants:  seedTenants(t, "T1", "retrieve"),
	}
	tool := &VectorSearchTool{Tool: vt, TenantID: "T1", SessionID: "s1"}

	raw, _ := json.Marshal(map[string]any{"query": "x", "tenant_id": "T2"})
	if _, err := tool.Call(context.Background(), raw); err != nil {
		t.Fatalf("Call: %v", err)
	}
}

func TestGraphSearchToolSchemaAndDispatch(t *testing.T) {
	store := databases.NewMemoryGraph()
	gt := &retrieval.GraphTool{
		Store:   store,
		Cache:   rcache.New(rcache.NewMemoryStore(8), time.Minute, 8),
		Tenants: seedTenants(t, "T1", "retrieve"),
	}
	tool := &GraphSearchTool{Tool: gt, TenantID: "T1", SessionID: "s1"}
	if tool.Name() != "graph_search" {
		t.Fatalf("Name() = %s", tool.Name())
	}
	raw, _ := json.Marshal(map[string]any{"query": "acme", "limit": 5})
	out, err := tool.Call(context.Background(), raw)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if _, ok := out.(retrieval.GraphResponse); !ok {
		t.Fatalf("unexpected response type %T", out)
	}
}

func TestHybridSearchToolSchemaName(t *testing.T) {
	tool := &HybridSearchTool{TenantID: "T1", SessionID: "s1"}
	if tool.Name() != "hybrid_search" {
		t.Fatalf("Name() = %s", tool.Name())
	}
	schema := tool.JSONSchema()
	if schema["name"] != "hybrid_search" {
		t.Fatalf("schema name = %v", schema["name"])
	}
}

func TestCheckpointLookupToolRejectsUnknownStage(t *testing.T) {
	lookup := checkpoint.NewLookup(t.TempDir())
	tool := &CheckpointLookupTool{Lookup: lookup, TenantID: "T1"}
	if tool.Name() != "checkpoint_lookup" {
		t.Fatalf("Name() = %s", tool.Name())
	}
	raw, _ := json.Marshal(map[string]any{"stage": "not-a-stage"})
	if _, err := tool.Call(context.Background(), raw); err == nil {
		t.Fatalf("expected an error for an unknown stage")
	}
}

func TestCheckpointLookupToolEmptyTreeIsNotAnError(t *testing.T) {
	lookup := checkpoint.NewLookup(t.TempDir())
	tool := &CheckpointLookupTool{Lookup: lookup, TenantID: "T1"}
	raw, _ := json.Marshal(map[string]any{"stage": "ingestion"})
	out, err := tool.Call(context.Background(), raw)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	resp, ok := out.(checkpoint.Response)
	if !ok {
		t.Fatalf("unexpected response type %T", out)
	}
	if resp.TotalFound != 0 {
		t.Fatalf("TotalFound = %d, want 0", resp.TotalFound)
	}
}
