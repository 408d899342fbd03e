package telemetry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// JSONLSink appends each ToolInvocation as one JSON line to
// {reportsDir}/telemetry/{tenant_id}/{YYYY-MM-DD}.jsonl.
type JSONLSink struct {
	reportsDir string
	mu         sync.Mutex
}

// NewJSONLSink constructs a sink rooted at reportsDir (the directory that
// contains "telemetry/"). An empty reportsDir defaults to "reports".
func NewJSONLSink(reportsDir string) *JSONLSink {
	if reportsDir == "" {
		reportsDir = "reports"
	}
	return &JSONLSink{reportsDir: reportsDir}
}

// Append writes inv as one line to the tenant's file for inv.Timestamp's
// date, creating parent directories as needed.
func (s *JSONLSink) Append(inv ToolInvocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.reportsDir, "telemetry", inv.TenantID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, inv.Timestamp.UTC().Format("2006-01-02")+".jsonl")

	line, err := json.Marshal(inv)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(append(line, '\n'))
	return err
}
