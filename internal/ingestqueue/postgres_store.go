package ingestqueue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
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
CREATE TABLE IF NOT EXISTS ingestion_jobs (
  job_id              UUID PRIMARY KEY DEFAULT gen_random_uuid(),
  tenant_id           TEXT NOT NULL,
  document_id         TEXT NOT NULL DEFAULT '',
  checksum            TEXT NOT NULL,
  storage_path        TEXT NOT NULL,
  connector_type      TEXT NOT NULL,
  source_format       TEXT NOT NULL,
  metadata            JSONB NOT NULL DEFAULT '{}'::jsonb,
  status              TEXT NOT NULL,
  created_at          TIMESTAMPTZ NOT NULL,
  started_at          TIMESTAMPTZ,
  completed_at        TIMESTAMPTZ,
  error_message       TEXT NOT NULL DEFAULT '',
  retry_count         INTEGER NOT NULL DEFAULT 0,
  visibility_deadline TIMESTAMPTZ,
  worker_id           TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS ingestion_jobs_checksum_idx ON ingestion_jobs(checksum, created_at DESC);
CREATE INDEX IF NOT EXISTS ingestion_jobs_status_idx ON ingestion_jobs(status, created_at ASC);
`)
	return err
}

func (s *pgStore) FindByChecksum(ctx context.Context, checksum string) (Job, bool, error) {
	row := s.pool.QueryRow(ctx, `
SELECT job_id, tenant_id, document_id, checksum, storage_path, connector_type, source_format,
       metadata, status, created_at, started_at, completed_at, error_message, retry_count,
       visibility_deadline, worker_id
FROM ingestion_jobs WHERE checksum=$1 ORDER BY created_at DESC LIMIT 1`, checksum)
	job, err := scanJob(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Job{}, false, nil
		}
		return Job{}, false, err
	}
	return job, true, nil
}

func (s *pgStore) Insert(ctx context.Context, job Job) (string, error) {
	meta, err := json.Marshal(job.Metadata)
	if err != nil {
		return "", err
	}
	var jobID string
	err = s.pool.QueryRow(ctx, `
INSERT INTO ingestion_jobs(tenant_id, checksum, storage_path, connector_type, source_format, metadata, status, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
RETURNING job_id`, job.TenantID, job.Checksum, job.Path, job.ConnectorType, job.SourceFormat, meta, job.Status, job.CreatedAt).Scan(&jobID)
	return jobID, err
}

// Dequeue uses FOR UPDATE SKIP LOCKED so concurrent workers never claim the
// same row.
func (s *pgStore) Dequeue(ctx context.Context, workerID string, visibilityTTL time.Duration, maxRetries int) (Job, bool, error) {
	now := time.Now().UTC()
	deadline := now.Add(visibilityTTL)
	row := s.pool.QueryRow(ctx, `
UPDATE ingestion_jobs
SET status=$1, started_at=$2, visibility_deadline=$3, worker_id=$4
WHERE job_id = (
  SELECT job_id FROM ingestion_jobs
  WHERE (status IN ($5, $6) OR (status=$1 AND visibility_deadline < $2))
    AND retry_count < $7
  ORDER BY created_at ASC
  LIMIT 1
  FOR UPDATE SKIP LOCKED
)
RETURNING job_id, tenant_id, document_id, checksum, storage_path, connector_type, source_format,
          metadata, status, created_at, started_at, completed_at, error_message, retry_count,
          visibility_deadline, worker_id
`, StatusInProgress, now, deadline, workerID, StatusPending, StatusRetry, maxRetries)

	job, err := scanJob(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Job{}, false, nil
		}
		return Job{}, false, err
	}
	return job, true, nil
}

func (s *pgStore) Complete(ctx context.Context, jobID, documentID string) error {
	_, err := s.pool.Exec(ctx, `
UPDATE ingestion_jobs SET status=$1, completed_at=$2, document_id=$3, visibility_deadline=NULL
WHERE job_id=$4`, StatusCompleted, time.Now().UTC(), documentID, jobID)
	return err
}

func (s *pgStore) Fail(ctx context.Context, jobID, errMsg string, maxRetries int) error {
	var retryCount int
	if err := s.pool.QueryRow(ctx, `SELECT retry_count FROM ingestion_jobs WHERE job_id=$1`, jobID).Scan(&retryCount); err != nil {
		return err
	}
	if retryCount+1 >= maxRetries {
		_, err := s.pool.Exec(ctx, `
UPDATE ingestion_jobs SET status=$1, completed_at=$2, error_message=$3, retry_count=retry_count+1, visibility_deadline=NULL
WHERE job_id=$4`, StatusFailed, time.Now().UTC(), errMsg, jobID)
		return err
	}
	_, err := s.pool.Exec(ctx, `
UPDATE ingestion_jobs SET status=$1, error_message=$2, retry_count=retry_count+1, visibility_deadline=NULL
WHERE job_id=$3`, StatusRetry, errMsg, jobID)
	return err
}

func (s *pgStore) Stats(ctx context.Context) (Stats, error) {
	var out Stats
	err := s.pool.QueryRow(ctx, `
SELECT
  count(*) FILTER (WHERE status=$1),
  count(*) FILTER (WHERE status=$2),
  count(*) FILTER (WHERE status=$3),
  count(*) FILTER (WHERE status=$4),
  count(*) FILTER (WHERE status=$5),
  count(*)
FROM ingestion_jobs WHERE created_at > NOW() - INTERVAL '7 days'
`, StatusPending, StatusInProgress, StatusCompleted, StatusFailed, StatusRetry).
		Scan(&out.Pending, &out.InProgress, &out.Completed, &out.Failed, &out.Retry, &out.Total)
	if err != nil {
		return Stats{}, err
	}

	var oldestPending *time.Time
	err = s.pool.QueryRow(ctx, `SELECT MIN(created_at) FROM ingestion_jobs WHERE status=$1`, StatusPending).Scan(&oldestPending)
	if err != nil {
		return Stats{}, err
	}
	if oldestPending != nil {
		out.BacklogHours = time.Since(*oldestPending).Hours()
		out.BacklogAlert = out.BacklogHours > 24
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var j Job
	if err := row.Scan(&j.JobID, &j.TenantID, &j.DocumentID, &j.Checksum, &j.Path, &j.ConnectorType,
		&j.SourceFormat, &j.Metadata, &j.Status, &j.CreatedAt, &j.StartedAt, &j.CompletedAt,
		&j.Error, &j.RetryCount, &j.VisibilityDeadline, &j.WorkerID); err != nil {
		return Job{}, err
	}
	return j, nil
}
