package session

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewID(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 8, 30, 14, 5, 9, 0, time.UTC)
	if got := NewID(start); got != "session_20260830_140509" {
		t.Errorf("NewID = %q", got)
	}
}

func TestOpenAndWriteArtifacts(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	start := time.Date(2026, 8, 30, 14, 5, 9, 0, time.UTC)
	s, err := Open(root, start)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.Dir() != filepath.Join(root, s.ID()) {
		t.Errorf("Dir = %s, ID = %s", s.Dir(), s.ID())
	}

	path, err := s.WriteStage("discovery", map[string]any{"fields": 5})
	if err != nil {
		t.Fatalf("WriteStage: %v", err)
	}
	if filepath.Base(path) != "discovery_session_20260830_140509.json" {
		t.Errorf("stage artifact name = %s", filepath.Base(path))
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatalf("artifact not valid JSON: %v", err)
	}
	if doc["fields"] != 5.0 {
		t.Errorf("doc = %v", doc)
	}

	if _, err := s.WriteConsolidated(map[string]any{"ok": true}); err != nil {
		t.Fatalf("WriteConsolidated: %v", err)
	}
}

func TestWriteStageAppendOnly(t *testing.T) {
	t.Parallel()

	s, err := Open(t.TempDir(), time.Now())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.WriteStage("filtering", map[string]int{"rows": 25}); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if _, err := s.WriteStage("filtering", map[string]int{"rows": 30}); !errors.Is(err, ErrArtifactExists) {
		t.Fatalf("second write err = %v, want ErrArtifactExists", err)
	}
}
