package telemetry

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDurableRecorderWritesStoreAndSink(t *testing.T) {
	dir := t.TempDir()
	store := NewMemoryStore()
	sink := NewJSONLSink(dir)
	rec := NewDurableRecorder(store, sink)

	ts := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	inv := ToolInvocation{
		TenantID: "T1", ToolName: "vector_search", Success: true,
		LatencyMS: 42, ResultCount: 3, Timestamp: ts,
	}
	if err := rec.Record(inv); err != nil {
		t.Fatalf("Record: %v", err)
	}

	stats, err := store.Stats(context.Background(), "T1", 0)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	ts1 := stats["vector_search"]
	if ts1.Calls != 1 || ts1.Successes != 1 || ts1.SuccessRate != 1 || ts1.AvgLatencyMS != 42 || ts1.TotalResults != 3 {
		t.Fatalf("stats[vector_search] = %+v, unexpected", ts1)
	}

	path := filepath.Join(dir, "telemetry", "T1", "2026-03-05.jsonl")
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected JSONL file at %s: %v", path, err)
	}
	var decoded ToolInvocation
	if err := json.Unmarshal(raw[:len(raw)-1], &decoded); err != nil {
		t.Fatalf("decode line: %v", err)
	}
	if decoded.ToolName != "vector_search" || decoded.ResultCount != 3 {
		t.Fatalf("decoded = %+v, unexpected", decoded)
	}
}

func TestJSONLSinkAppendsOneLinePerCall(t *testing.T) {
	dir := t.TempDir()
	sink := NewJSONLSink(dir)
	ts := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if err := sink.Append(ToolInvocation{TenantID: "T1", ToolName: "graph_search", Timestamp: ts}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	path := filepath.Join(dir, "telemetry", "T1", "2026-03-05.jsonl")
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := 0
	for _, b := range raw {
		if b == '\n' {
			lines++
		}
	}
	if lines != 3 {
		t.Fatalf("want 3 lines, got %d", lines)
	}
}

func TestMemoryStoreStatsPerToolOverWindow(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	// Outside the window: must not count toward stats.
	_ = store.Insert(ctx, ToolInvocation{
		TenantID: "T1", ToolName: "vector_search", Success: true,
		LatencyMS: 1000, ResultCount: 9, Timestamp: now.Add(-48 * time.Hour),
	})
	// Inside the window.
	_ = store.Insert(ctx, ToolInvocation{
		TenantID: "T1", ToolName: "vector_search", Success: true,
		LatencyMS: 100, ResultCount: 2, Timestamp: now,
	})
	_ = store.Insert(ctx, ToolInvocation{
		TenantID: "T1", ToolName: "vector_search", Success: false,
		LatencyMS: 200, ResultCount: 0, Timestamp: now,
	})
	_ = store.Insert(ctx, ToolInvocation{
		TenantID: "T1", ToolName: "graph_search", Success: true,
		LatencyMS: 50, ResultCount: 1, Timestamp: now,
	})

	stats, err := store.Stats(ctx, "T1", time.Hour)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}

	vec := stats["vector_search"]
	if vec.Calls != 2 || vec.Successes != 1 || vec.SuccessRate != 0.5 || vec.AvgLatencyMS != 150 || vec.TotalResults != 2 {
		t.Fatalf("stats[vector_search] = %+v, unexpected", vec)
	}
	graph := stats["graph_search"]
	if graph.Calls != 1 || graph.SuccessRate != 1 {
		t.Fatalf("stats[graph_search] = %+v, unexpected", graph)
	}
}

func TestNoOpRecorderNeverErrors(t *testing.T) {
	var r Recorder = NoOp{}
	if err := r.Record(ToolInvocation{}); err != nil {
		t.Fatalf("NoOp.Record should never error, got %v", err)
	}
}
