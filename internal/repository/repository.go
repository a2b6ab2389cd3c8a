package repository

import (
	"context"

	"github.com/sakif/github-users/internal/model"
)

// RunRepository is the run ledger: one row per pipeline run, plus the
// extractor's cursor as it advances.
type RunRepository interface {
	StartRun(ctx context.Context, run *model.Run) error
	UpdateCursor(ctx context.Context, id string, cursor int64) error
	FinishRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	LastCursor(ctx context.Context) (int64, error)
}
