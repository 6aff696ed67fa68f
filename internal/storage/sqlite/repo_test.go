package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"insight/internal/storage"
)

func openTestRepo(t *testing.T) storage.Repository {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "results.db")
	repo, err := storage.New(context.Background(), storage.Config{Kind: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(repo.Close)

	if err := repo.EnsureTable(context.Background()); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	return repo
}

func testRecords() []storage.Record {
	return []storage.Record{
		{SessionID: "session_20260830_120000", Rank: 1, RowIndex: 4, Score: 0.91, Payload: `{"PRODUCT":"Widget A"}`},
		{SessionID: "session_20260830_120000", Rank: 2, RowIndex: 0, Score: 0.74, Payload: `{"PRODUCT":"Widget B"}`},
	}
}

func TestInsertRecords(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)
	n, err := repo.InsertRecords(context.Background(), testRecords())
	if err != nil {
		t.Fatalf("InsertRecords: %v", err)
	}
	if n != 2 {
		t.Fatalf("inserted = %d, want 2", n)
	}
}

func TestInsertRecordsIdempotent(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)
	if _, err := repo.InsertRecords(context.Background(), testRecords()); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	n, err := repo.InsertRecords(context.Background(), testRecords())
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if n != 0 {
		t.Fatalf("reinserted = %d, want 0", n)
	}
}

func TestEnsureTableIdempotent(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)
	if err := repo.EnsureTable(context.Background()); err != nil {
		t.Fatalf("second EnsureTable: %v", err)
	}
}

func TestInsertNoRecords(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)
	n, err := repo.InsertRecords(context.Background(), nil)
	if err != nil || n != 0 {
		t.Fatalf("InsertRecords(nil) = %d, %v", n, err)
	}
}
