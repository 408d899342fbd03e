package telemetry

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Store is the durable backend for ToolInvocation rows, queried by stats().
type Store interface {
	Insert(ctx context.Context, inv ToolInvocation) error
	// Stats aggregates, per tool, every invocation for tenantID with a
	// timestamp within window of now (a zero window means "no limit").
	Stats(ctx context.Context, tenantID string, window time.Duration) (Stats, error)
}

// ToolStats summarizes one tool's recorded invocations over a window.
type ToolStats struct {
	Calls        int
	Successes    int
	SuccessRate  float64
	AvgLatencyMS float64
	TotalResults int
	TotalCost    float64
}

// Stats is a per-tool summary, keyed by tool name.
type Stats map[string]ToolStats

var tracer = otel.Tracer("ragcore/telemetry")

// DurableRecorder records every ToolInvocation to a durable Store, mirrors
// it into the tenant's daily JSONL sink, and emits a span carrying the same
// fields as attributes, so the same record serves stats() queries and
// distributed tracing without a third mechanism.
type DurableRecorder struct {
	store Store
	sink  *JSONLSink
}

// NewDurableRecorder constructs a Recorder backed by store and sink. Either
// may be nil to disable that leg (e.g. in tests that only need one).
func NewDurableRecorder(store Store, sink *JSONLSink) *DurableRecorder {
	return &DurableRecorder{store: store, sink: sink}
}

// Record persists inv to the durable store, appends it to the tenant's
// daily JSONL file, and records a span. Sink and store failures are logged
// here and never returned as a hard error, matching the "writes are
// absorbed" propagation policy for C8.
func (r *DurableRecorder) Record(inv ToolInvocation) error {
	ctx := context.Background()
	_, span := tracer.Start(ctx, "tool_invocation."+inv.ToolName, trace.WithAttributes(
		attribute.String("tenant_id", inv.TenantID),
		attribute.String("session_id", inv.SessionID),
		attribute.String("tool_name", inv.ToolName),
		attribute.Bool("success", inv.Success),
		attribute.Int64("latency_ms", inv.LatencyMS),
		attribute.Int("result_count", inv.ResultCount),
	))
	if inv.Error != "" {
		span.SetAttributes(attribute.String("error", inv.Error))
	}
	span.End()

	if r.store != nil {
		if err := r.store.Insert(ctx, inv); err != nil {
			log.Warn().Err(err).Str("tool_name", inv.ToolName).Msg("telemetry store write failed")
		}
	}
	if r.sink != nil {
		if err := r.sink.Append(inv); err != nil {
			log.Warn().Err(err).Str("tool_name", inv.ToolName).Msg("telemetry file write failed")
		}
	}
	return nil
}

// Stats returns tenantID's per-tool summary over the trailing window (a
// zero window means "no limit"), delegating to the durable store.
func (r *DurableRecorder) Stats(ctx context.Context, tenantID string, window time.Duration) (Stats, error) {
	if r.store == nil {
		return Stats{}, nil
	}
	return r.store.Stats(ctx, tenantID, window)
}
