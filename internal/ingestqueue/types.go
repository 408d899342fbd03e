// Package ingestqueue implements the ingestion job queue (C9): an
// at-least-once job queue with visibility-timeout leasing, bounded retry,
// checksum-based duplicate suppression, and an append-only progress log.
package ingestqueue

import "time"

// Status is a job's lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRetry      Status = "retry"
)

// Job is one ingestion job record.
type Job struct {
	JobID             string
	TenantID          string
	DocumentID        string
	Checksum          string
	Path              string
	ConnectorType     string
	SourceFormat      string
	Metadata          map[string]any
	Status            Status
	CreatedAt         time.Time
	StartedAt         *time.Time
	CompletedAt       *time.Time
	Error             string
	RetryCount        int
	VisibilityDeadline *time.Time
	WorkerID          string
}

// Stats summarizes queue state over the trailing window the Store
// implementation applies (7 days, per the queue's non-goals).
type Stats struct {
	Pending       int
	InProgress    int
	Completed     int
	Failed        int
	Retry         int
	Total         int
	BacklogHours  float64
	BacklogAlert  bool
}
