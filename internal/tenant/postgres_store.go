package tenant

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgStore struct{ pool *pgxpool.Pool }

// NewPostgresStore constructs a durable Store backed by Postgres and
// ensures its schema exists.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (Store, error) {
	s := &pgStore{pool: pool}
	if err := s.init(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *pgStore) init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tenants (
  tenant_id     TEXT PRIMARY KEY,
  display_name  TEXT NOT NULL,
  business_unit TEXT NOT NULL DEFAULT '',
  department    TEXT NOT NULL DEFAULT '',
  industry      TEXT NOT NULL DEFAULT '',
  priority_tier TEXT NOT NULL DEFAULT '',
  allowed_ops   TEXT[] NOT NULL DEFAULT '{}',
  consent_expires_at TIMESTAMPTZ,
  consent_version INTEGER NOT NULL DEFAULT 1,
  active        BOOLEAN NOT NULL DEFAULT true
);
`)
	return err
}

func (s *pgStore) Get(ctx context.Context, tenantID string) (Tenant, bool, error) {
	row := s.pool.QueryRow(ctx, `
SELECT tenant_id, display_name, business_unit, department, industry, priority_tier,
       allowed_ops, consent_expires_at, consent_version, active
FROM tenants WHERE tenant_id=$1`, tenantID)
	t, err := scanTenant(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Tenant{}, false, nil
		}
		return Tenant{}, false, err
	}
	return t, true, nil
}

func (s *pgStore) Put(ctx context.Context, t Tenant) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO tenants(tenant_id, display_name, business_unit, department, industry,
                     priority_tier, allowed_ops, consent_expires_at, consent_version, active)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (tenant_id) DO UPDATE SET
  display_name=EXCLUDED.display_name,
  business_unit=EXCLUDED.business_unit,
  department=EXCLUDED.department,
  industry=EXCLUDED.industry,
  priority_tier=EXCLUDED.priority_tier,
  allowed_ops=EXCLUDED.allowed_ops,
  consent_expires_at=EXCLUDED.consent_expires_at,
  consent_version=EXCLUDED.consent_version,
  active=EXCLUDED.active
`, t.TenantID, t.DisplayName, t.BusinessUnit, t.Department, t.Industry, t.PriorityTier,
		t.Consent.AllowedOps, t.Consent.ExpiresAt, t.Consent.Version, t.Active)
	return err
}

func (s *pgStore) List(ctx context.Context) ([]Tenant, error) {
	rows, err := s.pool.Query(ctx, `
SELECT tenant_id, display_name, business_unit, department, industry, priority_tier,
       allowed_ops, consent_expires_at, consent_version, active
FROM tenants ORDER BY tenant_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// rowScanner abstracts pgx.Row and pgx.Rows for shared scan logic.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTenant(row rowScanner) (Tenant, error) {
	var t Tenant
	var expiresAt *time.Time
	if err := row.Scan(&t.TenantID, &t.DisplayName, &t.BusinessUnit, &t.Department, &t.Industry,
		&t.PriorityTier, &t.Consent.AllowedOps, &expiresAt, &t.Consent.Version, &t.Active); err != nil {
		return Tenant{}, err
	}
	t.Consent.ExpiresAt = expiresAt
	return t, nil
}
