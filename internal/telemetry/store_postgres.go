package telemetry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type pgStore struct{ pool *pgxpool.Pool }

// NewPostgresStore constructs a durable Store backed by Postgres.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (Store, error) {
	s := &pgStore{pool: pool}
	if err := s.init(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *pgStore) init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tool_invocations (
  id           BIGSERIAL PRIMARY KEY,
  session_id   TEXT NOT NULL DEFAULT '',
  tenant_id    TEXT NOT NULL,
  tool_name    TEXT NOT NULL,
  query_text   TEXT NOT NULL DEFAULT '',
  parameters   JSONB NOT NULL DEFAULT '{}'::jsonb,
  success      BOOLEAN NOT NULL,
  latency_ms   BIGINT NOT NULL,
  result_count INTEGER NOT NULL DEFAULT 0,
  error        TEXT NOT NULL DEFAULT '',
  cost_cents   DOUBLE PRECISION,
  ts           TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS tool_invocations_tenant_idx ON tool_invocations(tenant_id, ts DESC);
`)
	return err
}

func (s *pgStore) Insert(ctx context.Context, inv ToolInvocation) error {
	params, err := json.Marshal(inv.Parameters)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO tool_invocations(session_id, tenant_id, tool_name, query_text, parameters,
                              success, latency_ms, result_count, error, cost_cents, ts)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`, inv.SessionID, inv.TenantID, inv.ToolName, inv.QueryText, params,
		inv.Success, inv.LatencyMS, inv.ResultCount, inv.Error, inv.CostCents, inv.Timestamp)
	return err
}

// Stats aggregates, per tool_name, every row for tenantID with
// ts >= NOW() - INTERVAL '1 hour' * hours. A zero window queries all rows.
func (s *pgStore) Stats(ctx context.Context, tenantID string, window time.Duration) (Stats, error) {
	hours := window.Hours()
	rows, err := s.pool.Query(ctx, `
SELECT tool_name,
       count(*),
       count(*) FILTER (WHERE success),
       coalesce(avg(latency_ms), 0),
       coalesce(sum(result_count), 0),
       coalesce(sum(cost_cents), 0)
FROM tool_invocations
WHERE tenant_id = $1
  AND ($2 <= 0 OR ts >= NOW() - ($2 * INTERVAL '1 hour'))
GROUP BY tool_name`, tenantID, hours)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()

	out := Stats{}
	for rows.Next() {
		var name string
		var calls, successes, totalResults int
		var avgLatencyMS, totalCost float64
		if err := rows.Scan(&name, &calls, &successes, &avgLatencyMS, &totalResults, &totalCost); err != nil {
			return Stats{}, err
		}
		out[name] = ToolStats{
			Calls:        calls,
			Successes:    successes,
			SuccessRate:  successRate(successes, calls),
			AvgLatencyMS: avgLatencyMS,
			TotalResults: totalResults,
			TotalCost:    totalCost,
		}
	}
	return out, rows.Err()
}
