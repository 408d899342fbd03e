package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/conversa/ragcore/internal/apperr"
	"github.com/conversa/ragcore/internal/persistence/databases"
	"github.com/conversa/ragcore/internal/rcache"
)

func newHybridTool(t *testing.T) (*HybridTool, databases.VectorStore, databases.GraphDB) {
	t.Helper()
	registry := seedTenants(t, "T1", "retrieve")
	vecTool, vecStore := newVectorTool(t, "T1")
	vecTool.Tenants = registry
	graphTool, graphStore := newGraphTool(t, "T1")
	graphTool.Tenants = registry

	hybrid := &HybridTool{
		Vector:  vecTool,
		Graph:   graphTool,
		Cache:   rcache.New(rcache.NewMemoryStore(8), time.Minute, 8),
		Tenants: registry,
	}
	return hybrid, vecStore, graphStore
}

func TestHybridSearchFusesVectorBeforeGraphOnTies(t *testing.T) {
	ctx := context.Background()
	hybrid, vecStore, graphStore := newHybridTool(t)

	upsertChunk(t, hybrid.Vector, vecStore, "T1", "c1", "d1", 0, "acme widgets")
	_ = graphStore.UpsertNode(ctx, "n1", nil, map[string]any{"tenant_id": "T1", "name_normalized": "acme"})
	_ = graphStore.UpsertNode(ctx, "n2", nil, map[string]any{"tenant_id": "T1", "name_normalized": "widgets"})
	_ = graphStore.UpsertEdge(ctx, "n1", "RELATED_TO", "n2", nil)

	resp, err := hybrid.Search(ctx, HybridSearchRequest{Query: "acme", TenantID: "T1", TopK: 5})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(resp.Items) == 0 {
		t.Fatalf("expected fused items")
	}
	// Rank-1 vector and rank-1 graph items score identically under equal
	// weights; vector must sort first on ties.
	if resp.Items[0].Source != "vector" {
		t.Fatalf("Items[0].Source = %s, want vector (tie-break)", resp.Items[0].Source)
	}
}

func TestHybridSearchFailsWhenSubToolFails(t *testing.T) {
	ctx := context.Background()
	hybrid, _, _ := newHybridTool(t)
	hybrid.Vector.Store = failingVectorStore{}

	_, err := hybrid.Search(ctx, HybridSearchRequest{Query: "q", TenantID: "T1"})
	if apperr.KindOf(err) != apperr.BackendFailed {
		t.Fatalf("KindOf = %v, want BackendFailed (no partial fusion on sub-tool failure)", apperr.KindOf(err))
	}
}

type failingVectorStore struct{}

func (failingVectorStore) Upsert(context.Context, string, []float32, map[string]string) error {
	return nil
}
func (failingVectorStore) Delete(context.Context, string) error { return nil }
func (failingVectorStore) SimilaritySearch(context.Context, []float32, int, map[string]string) ([]databases.VectorResult, error) {
	return nil, errBackend
}

var errBackend = apperr.New(apperr.BackendFailed, "test", "simulated backend outage")

func TestHybridSearchCachesSecondCall(t *testing.T) {
	ctx := context.Background()
	hybrid, vecStore, _ := newHybridTool(t)
	upsertChunk(t, hybrid.Vector, vecStore, "T1", "c1", "d1", 0, "acme widgets")

	req := HybridSearchRequest{Query: "acme", TenantID: "T1", TopK: 5}
	first, err := hybrid.Search(ctx, req)
	if err != nil || first.CacheHit {
		t.Fatalf("first = %+v, %v", first, err)
	}
	second, err := hybrid.Search(ctx, req)
	if err != nil || !second.CacheHit {
		t.Fatalf("second = %+v, %v, want cache hit", second, err)
	}
}
