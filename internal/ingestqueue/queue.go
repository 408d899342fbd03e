package ingestqueue

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/conversa/ragcore/internal/apperr"
)

// ErrJobNotFound is returned by a Store when an operation names an unknown
// job id.
var ErrJobNotFound = apperr.New(apperr.NotFound, "ingestqueue", "job not found")

// EventPublisher fans out job-completion events to an external system (a
// Kafka topic, in this module). Publishing is best-effort: failures are
// logged, never propagated, per the "writes are absorbed" policy for
// ambient sinks.
type EventPublisher interface {
	Publish(ctx context.Context, event JobEvent) error
}

// JobEvent is one enqueue/complete/fail transition, published for
// downstream indexing triggers.
type JobEvent struct {
	Action   string `json:"action"` // "enqueued" | "completed" | "failed"
	JobID    string `json:"job_id"`
	TenantID string `json:"tenant_id"`
	Status   Status `json:"status"`
	Ts       time.Time `json:"ts"`
}

// Queue is the process-facing API for C9: enqueue, dequeue, complete, fail,
// stats, backed by a durable Store, a progress log, and an optional event
// publisher.
type Queue struct {
	Store          Store
	Progress       *ProgressLog
	Publisher      EventPublisher
	MaxRetries     int
	VisibilityTTL  time.Duration
}

// NewQueue constructs a Queue. maxRetries<=0 defaults to 3;
// visibilityTTL<=0 defaults to 600s, matching JOB_MAX_RETRIES/
// JOB_VISIBILITY_SECONDS.
func NewQueue(store Store, progress *ProgressLog, publisher EventPublisher, maxRetries int, visibilityTTL time.Duration) *Queue {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if visibilityTTL <= 0 {
		visibilityTTL = 600 * time.Second
	}
	return &Queue{Store: store, Progress: progress, Publisher: publisher, MaxRetries: maxRetries, VisibilityTTL: visibilityTTL}
}

// Enqueue adds a job for tenantID. If a job with the same checksum already
// exists and is in_progress or completed, its existing job_id is returned
// instead of creating a duplicate (this is a normal Conflict-free result,
// not an error).
func (q *Queue) Enqueue(ctx context.Context, tenantID, path, connectorType, sourceFormat, checksum string, metadata map[string]any) (string, error) {
	if tenantID == "" || path == "" {
		return "", apperr.New(apperr.InvalidArgument, "enqueue", "tenant_id and path are required")
	}
	if checksum == "" {
		sum, err := ChecksumFile(path)
		if err != nil {
			return "", apperr.Wrap(apperr.BackendFailed, "enqueue", "failed to read source file", err)
		}
		checksum = sum
	}

	existing, found, err := q.Store.FindByChecksum(ctx, checksum)
	if err != nil {
		return "", apperr.Wrap(apperr.BackendFailed, "enqueue", "job store is unavailable", err)
	}
	if found && (existing.Status == StatusInProgress || existing.Status == StatusCompleted) {
		return existing.JobID, nil
	}

	job := Job{
		TenantID:      tenantID,
		Checksum:      checksum,
		Path:          path,
		ConnectorType: connectorType,
		SourceFormat:  sourceFormat,
		Metadata:      metadata,
		Status:        StatusPending,
		CreatedAt:     time.Now().UTC(),
	}
	jobID, err := q.Store.Insert(ctx, job)
	if err != nil {
		return "", apperr.Wrap(apperr.BackendFailed, "enqueue", "job store is unavailable", err)
	}

	q.logProgress(JobEvent{Action: "enqueued", JobID: jobID, TenantID: tenantID, Status: StatusPending, Ts: time.Now().UTC()})
	return jobID, nil
}

// Dequeue atomically claims the oldest eligible job for workerID, leasing it
// for visibilityTTL (or the queue default if zero).
func (q *Queue) Dequeue(ctx context.Context, workerID string, visibilityTTL time.Duration) (Job, bool, error) {
	if visibilityTTL <= 0 {
		visibilityTTL = q.VisibilityTTL
	}
	job, ok, err := q.Store.Dequeue(ctx, workerID, visibilityTTL, q.MaxRetries)
	if err != nil {
		return Job{}, false, apperr.Wrap(apperr.BackendFailed, "dequeue", "job store is unavailable", err)
	}
	return job, ok, nil
}

// Complete transitions jobID to completed.
func (q *Queue) Complete(ctx context.Context, jobID, documentID, tenantID string) error {
	if err := q.Store.Complete(ctx, jobID, documentID); err != nil {
		return apperr.Wrap(apperr.BackendFailed, "complete", "job store is unavailable", err)
	}
	evt := JobEvent{Action: "completed", JobID: jobID, TenantID: tenantID, Status: StatusCompleted, Ts: time.Now().UTC()}
	q.logProgress(evt)
	q.publish(ctx, evt)
	return nil
}

// Fail transitions jobID to retry (if under MaxRetries) or failed
// (terminal), per the "always retry until MAX_RETRIES, then failed" policy.
func (q *Queue) Fail(ctx context.Context, jobID, tenantID, errMsg string) error {
	if err := q.Store.Fail(ctx, jobID, errMsg, q.MaxRetries); err != nil {
		return apperr.Wrap(apperr.BackendFailed, "fail", "job store is unavailable", err)
	}
	evt := JobEvent{Action: "failed", JobID: jobID, TenantID: tenantID, Status: StatusFailed, Ts: time.Now().UTC()}
	q.logProgress(evt)
	q.publish(ctx, evt)
	return nil
}

// Stats reports queue counts over the trailing window, plus backlog
// alerting based on the oldest pending job's age.
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	stats, err := q.Store.Stats(ctx)
	if err != nil {
		return Stats{}, apperr.Wrap(apperr.BackendFailed, "stats", "job store is unavailable", err)
	}
	return stats, nil
}

func (q *Queue) logProgress(evt JobEvent) {
	if q.Progress == nil {
		return
	}
	if err := q.Progress.Append(evt); err != nil {
		log.Warn().Err(err).Str("job_id", evt.JobID).Msg("failed to append ingestion progress line")
	}
}

func (q *Queue) publish(ctx context.Context, evt JobEvent) {
	if q.Publisher == nil {
		return
	}
	if err := q.Publisher.Publish(ctx, evt); err != nil {
		log.Warn().Err(err).Str("job_id", evt.JobID).Msg("failed to publish job event")
	}
}
