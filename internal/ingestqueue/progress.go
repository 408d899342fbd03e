package ingestqueue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// ProgressLog appends one JSON line per enqueue/complete/fail transition to
// an operator-facing resume/audit file.
type ProgressLog struct {
	path string
	mu   sync.Mutex
}

// NewProgressLog constructs a log at path (e.g. "data/ingestion_progress.jsonl"),
// creating its parent directory on first append.
func NewProgressLog(path string) *ProgressLog {
	if path == "" {
		path = filepath.Join("data", "ingestion_progress.jsonl")
	}
	return &ProgressLog{path: path}
}

// Append writes evt as one line, creating the parent directory if needed.
func (p *ProgressLog) Append(evt JobEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if dir := filepath.Dir(p.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	line, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(p.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(line, '\n'))
	return err
}
