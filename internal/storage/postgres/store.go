package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"liquiditySniper/internal/model"
)

// Store persists the submission journal in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	store := &Store{pool: pool}
	if err := store.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS sniper_submissions (
			id BIGSERIAL PRIMARY KEY,
			node TEXT NOT NULL,
			run_id TEXT NOT NULL,
			cycle INT NOT NULL,
			side TEXT NOT NULL,
			round INT NOT NULL,
			tx_hash TEXT,
			gas TEXT,
			status TEXT NOT NULL,
			reason TEXT,
			trigger TEXT,
			recorded_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create sniper_submissions: %w", err)
	}
	return nil
}

// PutSubmissions inserts a batch of journal records.
func (s *Store) PutSubmissions(ctx context.Context, subs []model.Submission) error {
	if len(subs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, sub := range subs {
		recorded, err := time.Parse(time.RFC3339Nano, sub.Recorded)
		if err != nil {
			recorded = time.Now().UTC()
		}
		batch.Queue(`
			INSERT INTO sniper_submissions (
				node, run_id, cycle, side, round, tx_hash, gas, status, reason, trigger, recorded_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		`,
			sub.Node,
			sub.RunID,
			sub.Cycle,
			sub.Side,
			sub.Round,
			nullable(sub.TxHash),
			nullable(sub.Gas),
			string(sub.Status),
			nullable(sub.Reason),
			nullable(sub.Trigger),
			recorded,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range subs {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// CountExecuted returns how many executed rounds a run recorded on side.
func (s *Store) CountExecuted(ctx context.Context, runID, side string) (int, error) {
	var count int
	row := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM sniper_submissions WHERE run_id=$1 AND side=$2 AND status=$3
	`, runID, side, string(model.RoundExecuted))
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
