package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/conversa/ragcore/internal/apperr"
)

func writeMetadata(t *testing.T, root, tenantID string, stage Stage, id, body string, mtime time.Time) {
	t.Helper()
	dir := filepath.Join(root, tenantID, string(stage), id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(dir, "metadata.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

func TestFindOrdersByDescendingModTimeAndTruncates(t *testing.T) {
	root := t.TempDir()
	now := time.Now()
	writeMetadata(t, root, "T1", StageIngestion, "cp-old", `{"status":"approved"}`, now.Add(-time.Hour))
	writeMetadata(t, root, "T1", StageIngestion, "cp-new", `{"status":"pending"}`, now)

	l := NewLookup(root)
	resp, err := l.Find("T1", StageIngestion, 10)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(resp.Checkpoints) != 2 {
		t.Fatalf("want 2 checkpoints, got %d", len(resp.Checkpoints))
	}
	if resp.Checkpoints[0].ID != "cp-new" {
		t.Fatalf("expected cp-new first (most recent), got %s", resp.Checkpoints[0].ID)
	}
	if resp.Latest == nil || resp.Latest.ID != "cp-new" {
		t.Fatalf("Latest = %+v, want cp-new", resp.Latest)
	}
}

func TestFindMissingStageDirIsEmptyNotError(t *testing.T) {
	root := t.TempDir()
	l := NewLookup(root)
	resp, err := l.Find("T1", StageRetrieval, 10)
	if err != nil {
		t.Fatalf("expected no error for missing stage dir, got %v", err)
	}
	if resp.TotalFound != 0 {
		t.Fatalf("want zero checkpoints, got %d", resp.TotalFound)
	}
}

func TestFindSkipsMalformedMetadataWithoutFailing(t *testing.T) {
	root := t.TempDir()
	now := time.Now()
	writeMetadata(t, root, "T1", StageAgent, "cp-bad", `not json or yaml: [}`, now)
	writeMetadata(t, root, "T1", StageAgent, "cp-good", `{"status":"approved"}`, now.Add(time.Minute))

	l := NewLookup(root)
	resp, err := l.Find("T1", StageAgent, 10)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(resp.Checkpoints) != 1 || resp.Checkpoints[0].ID != "cp-good" {
		t.Fatalf("resp.Checkpoints = %+v, want only cp-good", resp.Checkpoints)
	}
}

func TestFindRejectsUnknownStage(t *testing.T) {
	l := NewLookup(t.TempDir())
	_, err := l.Find("T1", Stage("bogus"), 10)
	if apperr.KindOf(err) != apperr.InvalidArgument {
		t.Fatalf("KindOf = %v, want InvalidArgument", apperr.KindOf(err))
	}
}

func TestFindTruncatesToLimit(t *testing.T) {
	root := t.TempDir()
	now := time.Now()
	for i := 0; i < 5; i++ {
		writeMetadata(t, root, "T1", StageOCR, "cp"+string(rune('a'+i)), `{"status":"approved"}`, now.Add(time.Duration(i)*time.Minute))
	}
	l := NewLookup(root)
	resp, err := l.Find("T1", StageOCR, 2)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(resp.Checkpoints) != 2 {
		t.Fatalf("want 2 checkpoints after truncation, got %d", len(resp.Checkpoints))
	}
}
