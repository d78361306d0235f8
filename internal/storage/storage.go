package storage

import (
	"context"

	"liquiditySniper/internal/model"
)

// Journal is a sink for submission records.
type Journal interface {
	PutSubmissions(ctx context.Context, subs []model.Submission) error
}

// Counter reports journal totals for a run.
type Counter interface {
	CountExecuted(ctx context.Context, runID, side string) (int, error)
}

// Nop discards every record.
type Nop struct{}

func (Nop) PutSubmissions(context.Context, []model.Submission) error { return nil }
