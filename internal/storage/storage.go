// Package storage persists filtered analysis results. Backends register
// themselves under a kind string; the pipeline selects one through New.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// DefaultTable is used when Config.Table is empty.
const DefaultTable = "selected_rows"

// Config selects and configures a storage backend.
//
// Kind must match a registered backend kind ("sqlite", "postgres", "mssql").
// DSN is passed through to the backend factory; validation is backend-specific.
type Config struct {
	Kind  string
	DSN   string
	Table string
}

// TableName returns the configured table or DefaultTable.
func (c Config) TableName() string {
	if c.Table == "" {
		return DefaultTable
	}
	return c.Table
}

// Record is one persisted result row. Payload holds the original row values
// serialized as JSON so the schema stays stable across datasets.
type Record struct {
	SessionID string
	Rank      int
	RowIndex  int
	Score     float64
	Payload   string
}

// Repository is the backend-agnostic persistence interface.
//
// Inserts must be idempotent on (session_id, rank): re-running a session
// against the same database must not duplicate rows.
type Repository interface {
	// EnsureTable creates the results table if it does not exist.
	EnsureTable(ctx context.Context) error

	// InsertRecords writes records and reports how many were newly inserted.
	InsertRecords(ctx context.Context, records []Record) (int64, error)

	// Close releases backend resources. Treat as "call once".
	Close()
}

type factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind. Call from a backend package
// init(). Registering the same kind twice panics to fail fast on ambiguous
// backend selection.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// New constructs a Repository using the registered backend factory.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing Kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// Kinds returns the registered backend kinds for CLI help text.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
