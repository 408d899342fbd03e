// Package checkpoint implements the checkpoint lookup tool (C6): read-only
// enumeration of governance checkpoint bundles recorded on disk at
// checkpoints/{tenant_id}/{stage}/**/metadata.{json,yaml}.
package checkpoint

import (
	"io/fs"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/conversa/ragcore/internal/apperr"
	"github.com/rs/zerolog/log"
)

// Stage is one of the governance pipeline stages a checkpoint belongs to.
type Stage string

const (
	StageIngestion     Stage = "ingestion"
	StageOCR           Stage = "ocr"
	StageConsolidation Stage = "consolidation"
	StageRetrieval     Stage = "retrieval"
	StageAgent         Stage = "agent"
)

func validStage(s Stage) bool {
	switch s {
	case StageIngestion, StageOCR, StageConsolidation, StageRetrieval, StageAgent:
		return true
	}
	return false
}

// Status is the governance review outcome recorded for a checkpoint.
type Status string

const (
	StatusApproved Status = "approved"
	StatusPending  Status = "pending"
	StatusRejected Status = "rejected"
)

// Checkpoint is one governance-reviewed bundle.
type Checkpoint struct {
	ID        string         `yaml:"checkpoint_id" json:"id"`
	Status    Status         `yaml:"status" json:"status"`
	Reviewer  string         `yaml:"reviewer" json:"reviewer,omitempty"`
	Metrics   map[string]any `yaml:"metrics" json:"metrics,omitempty"`
	Artifacts []string       `yaml:"artifacts" json:"artifacts,omitempty"`
	Notes     string         `yaml:"notes" json:"notes,omitempty"`
	Timestamp time.Time      `yaml:"timestamp" json:"timestamp"`
}

// Response is the result of a checkpoint_lookup call.
type Response struct {
	Checkpoints []Checkpoint `json:"checkpoints"`
	Stage       Stage        `json:"stage"`
	TenantID    string       `json:"tenant_id"`
	Latest      *Checkpoint  `json:"latest_checkpoint,omitempty"`
	TotalFound  int          `json:"total_found"`
}

// Lookup enumerates checkpoint metadata files, grounded on the Tool's
// configured root directory.
type Lookup struct {
	Root fs.FS
}

// NewLookup constructs a Lookup rooted at root (e.g. "checkpoints" or
// CHECKPOINT_ROOT).
func NewLookup(root string) *Lookup {
	return &Lookup{Root: newOSFS(root)}
}

// Find returns the most recently modified checkpoints for tenantID at
// stage, truncated to limit. A missing stage directory is not an error; it
// yields an empty response. Malformed metadata files are logged and skipped.
func (l *Lookup) Find(tenantID string, stage Stage, limit int) (Response, error) {
	if !validStage(stage) {
		return Response{}, apperr.New(apperr.InvalidArgument, "checkpoint_lookup", "unknown stage")
	}
	if limit <= 0 {
		limit = 10
	}

	stageDir := filepath.Join(tenantID, string(stage))
	entries, err := findMetadataFiles(l.Root, stageDir)
	if err != nil {
		if isNotExist(err) {
			return Response{Stage: stage, TenantID: tenantID}, nil
		}
		return Response{}, apperr.Wrap(apperr.BackendFailed, "checkpoint_lookup", "checkpoint store is unavailable", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].modTime.After(entries[j].modTime) })
	if len(entries) > limit {
		entries = entries[:limit]
	}

	checkpoints := make([]Checkpoint, 0, len(entries))
	for _, e := range entries {
		cp, err := parseMetadata(l.Root, e)
		if err != nil {
			log.Warn().Err(err).Str("path", e.path).Msg("skipping malformed checkpoint metadata")
			continue
		}
		checkpoints = append(checkpoints, cp)
	}

	resp := Response{Checkpoints: checkpoints, Stage: stage, TenantID: tenantID, TotalFound: len(checkpoints)}
	if len(checkpoints) > 0 {
		latest := checkpoints[0]
		resp.Latest = &latest
	}
	return resp, nil
}

func parseMetadata(fsys fs.FS, e metadataFile) (Checkpoint, error) {
	raw, err := fs.ReadFile(fsys, e.path)
	if err != nil {
		return Checkpoint{}, err
	}
	var cp Checkpoint
	if err := yaml.Unmarshal(raw, &cp); err != nil {
		return Checkpoint{}, err
	}
	if cp.ID == "" {
		cp.ID = filepath.Base(filepath.Dir(e.path))
	}
	if cp.Status == "" {
		cp.Status = StatusPending
	}
	if cp.Timestamp.IsZero() {
		cp.Timestamp = e.modTime
	}
	if len(cp.Artifacts) == 0 {
		cp.Artifacts = siblingArtifacts(fsys, e.path)
	}
	return cp, nil
}

func siblingArtifacts(fsys fs.FS, metadataPath string) []string {
	dir := filepath.Dir(metadataPath)
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil
	}
	base := filepath.Base(metadataPath)
	var out []string
	for _, e := range entries {
		if e.Name() == base || e.IsDir() {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out
}
