package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"insight/internal/storage"
)

// Repo implements storage.Repository for Postgres.
//
// Idempotency uses ON CONFLICT (session_id, rank) DO NOTHING; inserts are
// batched through pgx.Batch over a single round trip.
type Repo struct {
	pool  *pgxpool.Pool
	table string
}

func init() {
	storage.Register("postgres", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	return &Repo{pool: pool, table: cfg.TableName()}, nil
}

func (r *Repo) Close() { r.pool.Close() }

func (r *Repo) EnsureTable(ctx context.Context) error {
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  session_id TEXT NOT NULL,
  rank INT NOT NULL,
  row_index INT NOT NULL,
  score DOUBLE PRECISION NOT NULL,
  payload JSONB NOT NULL,
  PRIMARY KEY (session_id, rank)
)`, r.table)
	if _, err := r.pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("create table %s: %w", r.table, err)
	}
	return nil
}

func (r *Repo) InsertRecords(ctx context.Context, records []storage.Record) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	q := fmt.Sprintf(
		`INSERT INTO %s (session_id, rank, row_index, score, payload)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (session_id, rank) DO NOTHING`, r.table)

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(q, rec.SessionID, rec.Rank, rec.RowIndex, rec.Score, rec.Payload)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	var inserted int64
	for range records {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("insert into %s: %w", r.table, err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}
