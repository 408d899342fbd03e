package ingestqueue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

// NewMemoryStore constructs an in-process Store. "SKIP LOCKED" is simulated
// with a per-row claimed-until timestamp checked under the single mutex.
func NewMemoryStore() Store {
	return &memoryStore{jobs: make(map[string]*Job)}
}

func (s *memoryStore) FindByChecksum(_ context.Context, checksum string) (Job, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *Job
	for _, j := range s.jobs {
		if j.Checksum != checksum {
			continue
		}
		if latest == nil || j.CreatedAt.After(latest.CreatedAt) {
			latest = j
		}
	}
	if latest == nil {
		return Job{}, false, nil
	}
	return *latest, true, nil
}

func (s *memoryStore) Insert(_ context.Context, job Job) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.Status == "" {
		job.Status = StatusPending
	}
	cp := job
	s.jobs[job.JobID] = &cp
	return job.JobID, nil
}

func (s *memoryStore) Dequeue(_ context.Context, workerID string, visibilityTTL time.Duration, maxRetries int) (Job, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var candidates []*Job
	for _, j := range s.jobs {
		if j.RetryCount >= maxRetries {
			continue
		}
		if j.Status == StatusPending || j.Status == StatusRetry {
			candidates = append(candidates, j)
			continue
		}
		if j.Status == StatusInProgress && j.VisibilityDeadline != nil && j.VisibilityDeadline.Before(now) {
			candidates = append(candidates, j)
		}
	}
	if len(candidates) == 0 {
		return Job{}, false, nil
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].CreatedAt.Before(candidates[j].CreatedAt) })

	j := candidates[0]
	j.Status = StatusInProgress
	j.WorkerID = workerID
	started := now
	j.StartedAt = &started
	deadline := now.Add(visibilityTTL)
	j.VisibilityDeadline = &deadline
	return *j, true, nil
}

func (s *memoryStore) Complete(_ context.Context, jobID, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	j.Status = StatusCompleted
	j.DocumentID = documentID
	now := time.Now().UTC()
	j.CompletedAt = &now
	j.VisibilityDeadline = nil
	return nil
}

func (s *memoryStore) Fail(_ context.Context, jobID, errMsg string, maxRetries int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	j.RetryCount++
	j.Error = errMsg
	j.VisibilityDeadline = nil
	if j.RetryCount >= maxRetries {
		j.Status = StatusFailed
		now := time.Now().UTC()
		j.CompletedAt = &now
	} else {
		j.Status = StatusRetry
	}
	return nil
}

func (s *memoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().AddDate(0, 0, -7)
	var out Stats
	var oldestPending *time.Time
	for _, j := range s.jobs {
		if j.CreatedAt.Before(cutoff) {
			continue
		}
		out.Total++
		switch j.Status {
		case StatusPending:
			out.Pending++
			if oldestPending == nil || j.CreatedAt.Before(*oldestPending) {
				t := j.CreatedAt
				oldestPending = &t
			}
		case StatusInProgress:
			out.InProgress++
		case StatusCompleted:
			out.Completed++
		case StatusFailed:
			out.Failed++
		case StatusRetry:
			out.Retry++
		}
	}
	if oldestPending != nil {
		out.BacklogHours = time.Since(*oldestPending).Hours()
		out.BacklogAlert = out.BacklogHours > 24
	}
	return out, nil
}
