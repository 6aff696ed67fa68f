package mssql

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/microsoft/go-mssqldb"

	"insight/internal/storage"
)

// Repo implements storage.Repository for Microsoft SQL Server.
//
// SQL Server has no CREATE TABLE IF NOT EXISTS, so EnsureTable guards the
// DDL with an OBJECT_ID check. Inserts are idempotent through a NOT EXISTS
// probe per row on (session_id, rank).
type Repo struct {
	db    *sql.DB
	table string
}

func init() {
	storage.Register("mssql", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db, table: cfg.TableName()}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

func (r *Repo) EnsureTable(ctx context.Context) error {
	q := fmt.Sprintf(`IF OBJECT_ID(N'%s', N'U') IS NULL
CREATE TABLE %s (
  session_id NVARCHAR(64) NOT NULL,
  [rank] INT NOT NULL,
  row_index INT NOT NULL,
  score FLOAT NOT NULL,
  payload NVARCHAR(MAX) NOT NULL,
  CONSTRAINT pk_%s PRIMARY KEY (session_id, [rank])
)`, r.table, r.table, r.table)
	if _, err := r.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("create table %s: %w", r.table, err)
	}
	return nil
}

func (r *Repo) InsertRecords(ctx context.Context, records []storage.Record) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	q := fmt.Sprintf(
		`INSERT INTO %s (session_id, [rank], row_index, score, payload)
		 SELECT @p1, @p2, @p3, @p4, @p5
		 WHERE NOT EXISTS (
		   SELECT 1 FROM %s WHERE session_id = @p1 AND [rank] = @p2
		 )`, r.table, r.table)

	var inserted int64
	for _, rec := range records {
		res, err := tx.ExecContext(ctx, q, rec.SessionID, rec.Rank, rec.RowIndex, rec.Score, rec.Payload)
		if err != nil {
			return inserted, fmt.Errorf("insert into %s: %w", r.table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return inserted, err
		}
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return inserted, err
	}
	return inserted, nil
}
