package service

import (
	"context"

	"reconboard/internal/domain"
)

// RunRecorder keeps the history of reconciliation runs. Only summaries are
// stored; the record set itself lives in the session.
//
//go:generate mockgen -destination=mocks/mock_recorder.go -source=interface.go RunRecorder
type RunRecorder interface {
	Record(ctx context.Context, run domain.RunSummary) error
	List(ctx context.Context, limit int) ([]domain.RunSummary, error)
}
