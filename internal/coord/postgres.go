package coord

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"liquiditySniper/internal/model"
)

// PostgresStore keeps one row per run. A conditional UPDATE on a NULL
// winner is the compare-and-swap.
type PostgresStore struct {
	pool  *pgxpool.Pool
	runID string
}

func NewPostgresStore(ctx context.Context, dsn, runID string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: pg dsn is required", model.ErrConfig)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	if runID == "" {
		runID = "default"
	}
	return &PostgresStore{pool: pool, runID: runID}, nil
}

func (s *PostgresStore) Init(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS sniper_coordination (
			run_id TEXT PRIMARY KEY,
			winner_node TEXT,
			exit_requested BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		return fmt.Errorf("create coordination table: %w", err)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sniper_coordination (run_id) VALUES ($1)
		ON CONFLICT (run_id) DO NOTHING
	`, s.runID)
	return err
}

func (s *PostgresStore) Load(ctx context.Context) (model.CoordinationRecord, error) {
	var record model.CoordinationRecord
	err := s.pool.QueryRow(ctx, `
		SELECT winner_node, exit_requested FROM sniper_coordination WHERE run_id = $1
	`, s.runID).Scan(&record.WinnerNode, &record.Exit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.CoordinationRecord{}, nil
		}
		return model.CoordinationRecord{}, err
	}
	return record, nil
}

func (s *PostgresStore) ClaimWinner(ctx context.Context, node string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sniper_coordination SET winner_node = $2, updated_at = now()
		WHERE run_id = $1 AND winner_node IS NULL
	`, s.runID, node)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	record, err := s.Load(ctx)
	if err != nil {
		return false, err
	}
	return record.WinnerNode != nil && *record.WinnerNode == node, nil
}

func (s *PostgresStore) RequestExit(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE sniper_coordination SET exit_requested = TRUE, updated_at = now()
		WHERE run_id = $1
	`, s.runID)
	return err
}

func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
