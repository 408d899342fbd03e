package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/conversa/ragcore/internal/apperr"
	"github.com/conversa/ragcore/internal/embedder"
	"github.com/conversa/ragcore/internal/persistence/databases"
	"github.com/conversa/ragcore/internal/rcache"
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

func newVectorTool(t *testing.T, tenantID string) (*VectorTool, databases.VectorStore) {
	t.Helper()
	store := databases.NewMemoryVector()
	tool := &VectorTool{
		Embedder: embedder.NewDeterministic(32, "det", 1),
		Store:    store,
		Cache:    rcache.New(rcache.NewMemoryStore(8), time.Minute, 8),
		Tenants:  seedTenants(t, tenantID, "retrieve"),
	}
	return tool, store
}

func upsertChunk(t *testing.T, tool *VectorTool, store databases.VectorStore, tenantID, chunkID, docID string, idx int, content string) {
	t.Helper()
	vec, err := tool.Embedder.EmbedQuery(context.Background(), content)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	err = store.Upsert(context.Background(), chunkID, vec, map[string]string{
		"tenant_id":   tenantID,
		"document_id": docID,
		"chunk_index": itoa(idx),
		"content":     content,
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
}

func itoa(i int) string {
	digits := "0123456789"
	if i == 0 {
		return "0"
	}
	var b []byte
	for i > 0 {
		b = append([]byte{digits[i%10]}, b...)
		i /= 10
	}
	return string(b)
}

func TestVectorSearchReturnsCachedOnSecondCall(t *testing.T) {
	tool, store := newVectorTool(t, "T1")
	upsertChunk(t, tool, store, "T1", "c1", "d1", 0, "hola mundo")

	ctx := context.Background()
	req := VectorSearchRequest{Query: "hola mundo", TenantID: "T1", TopK: 5}

	first, err := tool.Search(ctx, req)
	if err != nil {
		t.Fatalf("first search: %v", err)
	}
	if first.CacheHit {
		t.Fatalf("expected first call to miss cache")
	}
	if first.TotalFound != 1 {
		t.Fatalf("TotalFound = %d, want 1", first.TotalFound)
	}

	second, err := tool.Search(ctx, req)
	if err != nil {
		t.Fatalf("second search: %v", err)
	}
	if !second.CacheHit {
		t.Fatalf("expected second identical call to hit cache")
	}
}

func TestVectorSearchRejectsEmptyQuery(t *testing.T) {
	tool, _ := newVectorTool(t, "T1")
	_, err := tool.Search(context.Background(), VectorSearchRequest{Query: "", TenantID: "T1"})
	if apperr.KindOf(err) != apperr.InvalidArgument {
		t.Fatalf("KindOf = %v, want InvalidArgument", apperr.KindOf(err))
	}
}

func TestVectorSearchRejectsOutOfRangeTopK(t *testing.T) {
	tool, _ := newVectorTool(t, "T1")
	_, err := tool.Search(context.Background(), VectorSearchRequest{Query: "q", TenantID: "T1", TopK: 51})
	if apperr.KindOf(err) != apperr.InvalidArgument {
		t.Fatalf("KindOf = %v, want InvalidArgument", apperr.KindOf(err))
	}
}

func TestVectorSearchDeniesUnconsentedTenant(t *testing.T) {
	tool, _ := newVectorTool(t, "T1")
	tool.Tenants = seedTenants(t, "T1") // no allowed ops
	_, err := tool.Search(context.Background(), VectorSearchRequest{Query: "q", TenantID: "T1"})
	if apperr.KindOf(err) != apperr.Denied {
		t.Fatalf("KindOf = %v, want Denied", apperr.KindOf(err))
	}
}

func TestVectorSearchOrdersByDescendingSimilarityThenDocAndChunk(t *testing.T) {
	tool, store := newVectorTool(t, "T1")
	upsertChunk(t, tool, store, "T1", "c-b-0", "docB", 0, "shared phrase shared phrase")
	upsertChunk(t, tool, store, "T1", "c-a-0", "docA", 0, "shared phrase shared phrase")

	resp, err := tool.Search(context.Background(), VectorSearchRequest{Query: "shared phrase shared phrase", TenantID: "T1", TopK: 5})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("want 2 results, got %d", len(resp.Results))
	}
	if resp.Results[0].DocumentID != "docA" {
		t.Fatalf("tie-break should prefer ascending document_id, got order %+v", resp.Results)
	}
}
