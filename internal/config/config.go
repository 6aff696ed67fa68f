// Package config holds the JSON run configuration for the insight binary
// and its validation. Flags override individual fields after loading.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Issue severities reported by Validate.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Issue is one validation finding.
type Issue struct {
	Severity string
	Path     string
	Message  string
}

// Storage selects an optional persistence backend for selected rows.
type Storage struct {
	Kind  string `json:"kind,omitempty"`
	DSN   string `json:"dsn,omitempty"`
	Table string `json:"table,omitempty"`
}

// Run is the full configuration for one pipeline run.
type Run struct {
	Question      string   `json:"question"`
	Data          []string `json:"data"`
	KnowledgeBase string   `json:"knowledge_base,omitempty"`
	SessionsDir   string   `json:"sessions_dir,omitempty"`
	Model         string   `json:"model,omitempty"`
	NoLLM         bool     `json:"no_llm,omitempty"`

	Storage        Storage `json:"storage,omitempty"`
	MetricsBackend string  `json:"metrics_backend,omitempty"`
}

// Load decodes a Run from a JSON file.
func Load(path string) (Run, error) {
	var r Run
	f, err := os.Open(path)
	if err != nil {
		return r, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&r); err != nil {
		return r, fmt.Errorf("decode config %s: %w", path, err)
	}
	return r, nil
}

// ValidateRun checks a Run and returns all findings. Callers treat any
// SeverityError issue as fatal before the pipeline starts.
func ValidateRun(r Run) []Issue {
	var issues []Issue

	if strings.TrimSpace(r.Question) == "" {
		issues = append(issues, Issue{SeverityError, "question", "must not be empty"})
	}
	if len(r.Data) == 0 {
		issues = append(issues, Issue{SeverityError, "data", "at least one data path is required"})
	}
	for i, p := range r.Data {
		if strings.TrimSpace(p) == "" {
			issues = append(issues, Issue{SeverityError, fmt.Sprintf("data[%d]", i), "empty path"})
		}
	}

	if r.Storage.Kind != "" && r.Storage.DSN == "" {
		issues = append(issues, Issue{SeverityError, "storage.dsn", "required when storage.kind is set"})
	}
	if r.Storage.Kind == "" && r.Storage.DSN != "" {
		issues = append(issues, Issue{SeverityWarning, "storage.kind", "dsn set but no backend kind; storage disabled"})
	}

	switch r.MetricsBackend {
	case "", "none", "datadog":
	default:
		issues = append(issues, Issue{SeverityWarning, "metrics_backend", fmt.Sprintf("unknown backend %q; metrics disabled", r.MetricsBackend)})
	}

	return issues
}

// HasError reports whether any issue is fatal.
func HasError(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}
