package session

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgStore struct{ pool *pgxpool.Pool }

// NewPostgresStore constructs a durable Store backed by Postgres, storing
// the turn list as a single JSONB column per session row.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (Store, error) {
	s := &pgStore{pool: pool}
	if err := s.init(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *pgStore) init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS sessions (
  session_id  TEXT PRIMARY KEY,
  tenant_id   TEXT NOT NULL,
  context     TEXT NOT NULL DEFAULT '',
  turns       JSONB NOT NULL DEFAULT '[]'::jsonb,
  metadata    JSONB NOT NULL DEFAULT '{}'::jsonb,
  created_at  TIMESTAMPTZ NOT NULL,
  updated_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS sessions_tenant_idx ON sessions(tenant_id);
`)
	return err
}

func (s *pgStore) Get(ctx context.Context, sessionID string) (Session, bool, error) {
	row := s.pool.QueryRow(ctx, `
SELECT session_id, tenant_id, context, turns, metadata, created_at, updated_at
FROM sessions WHERE session_id=$1`, sessionID)

	var sess Session
	var turnsRaw, metaRaw []byte
	if err := row.Scan(&sess.SessionID, &sess.TenantID, &sess.Context, &turnsRaw, &metaRaw, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return Session{}, false, nil
		}
		return Session{}, false, err
	}
	if err := json.Unmarshal(turnsRaw, &sess.Turns); err != nil {
		return Session{}, false, err
	}
	if len(metaRaw) > 0 {
		_ = json.Unmarshal(metaRaw, &sess.Metadata)
	}
	return sess, true, nil
}

func (s *pgStore) Put(ctx context.Context, sess Session) error {
	turnsRaw, err := json.Marshal(sess.Turns)
	if err != nil {
		return err
	}
	metaRaw, err := json.Marshal(sess.Metadata)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO sessions(session_id, tenant_id, context, turns, metadata, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (session_id) DO UPDATE SET
  context=EXCLUDED.context,
  turns=EXCLUDED.turns,
  metadata=EXCLUDED.metadata,
  updated_at=EXCLUDED.updated_at
`, sess.SessionID, sess.TenantID, sess.Context, turnsRaw, metaRaw, sess.CreatedAt, sess.UpdatedAt)
	return err
}
