package databases

import "context"

// VectorResult represents a single nearest neighbor lookup result.
type VectorResult struct {
	ID       string
	Score    float64 // Higher is closer; cosine similarity in [-1, 1].
	Metadata map[string]string
}

// VectorStore defines the minimum interface for a pluggable vector store.
// Tenant isolation is enforced by the caller through the metadata filter
// (every write and query carries a tenant_id predicate).
type VectorStore interface {
	Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error
	Delete(ctx context.Context, id string) error
	SimilaritySearch(ctx context.Context, vector []float32, k int, filter map[string]string) ([]VectorResult, error)
}

// Node is a minimal in-memory representation of a graph node.
type Node struct {
	ID     string
	Labels []string
	Props  map[string]any
}

// Edge connects two nodes by a normalized relationship type.
type Edge struct {
	SourceID string
	Rel      string
	TargetID string
}

// GraphDB defines a portable interface for minimal graph operations.
type GraphDB interface {
	UpsertNode(ctx context.Context, id string, labels []string, props map[string]any) error
	UpsertEdge(ctx context.Context, srcID, rel, dstID string, props map[string]any) error
	Neighbors(ctx context.Context, id string, rel string) ([]string, error)
	GetNode(ctx context.Context, id string) (Node, bool)

	// Query matches edges within tenantID's namespace whose relationship type
	// is in relTypes (any type, if relTypes is empty) and at least one
	// endpoint's name_normalized property contains queryLower. It returns at
	// most limit matching edges, in a deterministic order, together with the
	// nodes they touch.
	Query(ctx context.Context, tenantID string, relTypes []string, queryLower string, limit int) ([]Node, []Edge, error)
}

// Manager holds concrete database backends resolved from configuration.
type Manager struct {
	Vector VectorStore
	Graph  GraphDB
}

// Close releases any underlying pools. It is a no-op for memory backends.
func (m Manager) Close() {
	if c, ok := any(m.Vector).(interface{ Close() error }); ok {
		_ = c.Close()
	}
	if c, ok := any(m.Graph).(interface{ Close() error }); ok {
		_ = c.Close()
	}
}
