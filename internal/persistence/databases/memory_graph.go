package databases

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

type edgeKey struct{ src, rel string }

type memoryGraph struct {
	mu    sync.RWMutex
	nodes map[string]Node
	edges map[edgeKey]map[string]map[string]any // key:(src,rel) -> dst -> props
}

func NewMemoryGraph() GraphDB {
	return &memoryGraph{
		nodes: make(map[string]Node),
		edges: make(map[edgeKey]map[string]map[string]any),
	}
}

func (m *memoryGraph) UpsertNode(_ context.Context, id string, labels []string, props map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make(map[string]any, len(props))
	for k, v := range props {
		cp[k] = v
	}
	m.nodes[id] = Node{ID: id, Labels: append([]string{}, labels...), Props: cp}
	return nil
}

func (m *memoryGraph) UpsertEdge(_ context.Context, srcID, rel, dstID string, props map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := edgeKey{src: srcID, rel: rel}
	m.ensureEdgeKey(key)
	cp := make(map[string]any, len(props))
	for k, v := range props {
		cp[k] = v
	}
	m.edges[key][dstID] = cp
	return nil
}

func (m *memoryGraph) Neighbors(_ context.Context, id string, rel string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key := edgeKey{src: id, rel: rel}
	var out []string
	if dsts, ok := m.edges[key]; ok {
		for dst := range dsts {
			out = append(out, dst)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *memoryGraph) GetNode(_ context.Context, id string) (Node, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[id]
	return n, ok
}

func (m *memoryGraph) Query(_ context.Context, tenantID string, relTypes []string, queryLower string, limit int) ([]Node, []Edge, error) {
	if limit <= 0 {
		limit = 20
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	allowedRel := make(map[string]bool, len(relTypes))
	for _, r := range relTypes {
		allowedRel[r] = true
	}

	keys := make([]edgeKey, 0, len(m.edges))
	for k := range m.edges {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].src != keys[j].src {
			return keys[i].src < keys[j].src
		}
		return keys[i].rel < keys[j].rel
	})

	nodeOrder := make([]string, 0, limit*2)
	nodeSeen := make(map[string]struct{}, limit*2)
	var edges []Edge

	for _, k := range keys {
		if len(relTypes) > 0 && !allowedRel[k.rel] {
			continue
		}
		src, ok := m.nodes[k.src]
		if !ok || fmt.Sprint(src.Props["tenant_id"]) != tenantID {
			continue
		}
		dsts := make([]string, 0, len(m.edges[k]))
		for dst := range m.edges[k] {
			dsts = append(dsts, dst)
		}
		sort.Strings(dsts)
		for _, dst := range dsts {
			target, ok := m.nodes[dst]
			if !ok || fmt.Sprint(target.Props["tenant_id"]) != tenantID {
				continue
			}
			if queryLower != "" && !matchesQuery(src, queryLower) && !matchesQuery(target, queryLower) {
				continue
			}
			edges = append(edges, Edge{SourceID: k.src, Rel: k.rel, TargetID: dst})
			addNode(&nodeOrder, nodeSeen, k.src)
			addNode(&nodeOrder, nodeSeen, dst)
			if len(edges) >= limit {
				break
			}
		}
		if len(edges) >= limit {
			break
		}
	}

	nodes := make([]Node, 0, len(nodeOrder))
	for _, id := range nodeOrder {
		nodes = append(nodes, m.nodes[id])
	}
	return nodes, edges, nil
}

func matchesQuery(n Node, queryLower string) bool {
	nn, _ := n.Props["name_normalized"].(string)
	return strings.Contains(nn, queryLower)
}

func addNode(order *[]string, seen map[string]struct{}, id string) {
	if _, ok := seen[id]; ok {
		return
	}
	seen[id] = struct{}{}
	*order = append(*order, id)
}

func (m *memoryGraph) ensureEdgeKey(k edgeKey) {
	if _, ok := m.edges[k]; !ok {
		m.edges[k] = make(map[string]map[string]any)
	}
}
