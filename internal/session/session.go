// Package session persists the per-run artifact trail: one directory per
// pipeline invocation holding one JSON file per stage plus a consolidated
// results file. Writes are append-only; a session never rewrites an
// artifact it already produced.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrArtifactExists is returned when a stage artifact would be overwritten.
var ErrArtifactExists = errors.New("session: artifact already written")

// NewID derives the session identifier from the run start time.
func NewID(start time.Time) string {
	return "session_" + start.Format("20060102_150405")
}

// Store writes artifacts for one session under root/<session-id>/.
type Store struct {
	id  string
	dir string
}

// Open creates the session directory under root and returns its store.
func Open(root string, start time.Time) (*Store, error) {
	id := NewID(start)
	dir := filepath.Join(root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("session: create %s: %w", dir, err)
	}
	return &Store{id: id, dir: dir}, nil
}

// ID returns the session identifier.
func (s *Store) ID() string { return s.id }

// Dir returns the session directory path.
func (s *Store) Dir() string { return s.dir }

// WriteStage persists one stage's output as pretty-printed JSON, named
// "<stage>_<session-id>.json". Writing the same stage twice fails with
// ErrArtifactExists.
func (s *Store) WriteStage(stage string, v any) (string, error) {
	return s.write(fmt.Sprintf("%s_%s.json", stage, s.id), v)
}

// WriteConsolidated persists the end-of-run consolidated results file.
func (s *Store) WriteConsolidated(v any) (string, error) {
	return s.write(fmt.Sprintf("consolidated_results_%s.json", s.id), v)
}

func (s *Store) write(name string, v any) (string, error) {
	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("%w: %s", ErrArtifactExists, name)
	}

	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("session: marshal %s: %w", name, err)
	}
	b = append(b, '\n')
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", fmt.Errorf("session: write %s: %w", name, err)
	}
	return path, nil
}
