package dataset

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Source is one readable tabular input. Implementations must be side-effect
// free per call so discovery can retry or parallelize per source.
type Source interface {
	// Name returns a stable identifier for logs and artifacts.
	Name() string
	// Read loads the full source into memory. Errors are per-source and
	// recoverable; discovery skips failed sources.
	Read(ctx context.Context) (*Dataset, error)
}

// Open builds a Source for the given path by extension: .csv for CSV files,
// .html/.htm for HTML table documents. Unknown extensions default to CSV,
// which is the dominant input format.
func Open(path string) Source {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return &HTMLTableSource{Path: path}
	default:
		return &CSVSource{Path: path}
	}
}

// OpenAll maps paths to sources, preserving order.
func OpenAll(paths []string) ([]Source, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("dataset: no source paths given")
	}
	out := make([]Source, 0, len(paths))
	for _, p := range paths {
		out = append(out, Open(p))
	}
	return out, nil
}
