package repository

import (
	"context"
	"time"

	"github.com/user/linkchecker-service/internal/entity"
)

// ProgressRepository tracks the aggregate progress of scan and check runs.
type ProgressRepository interface {
	// Start records a new run.
	Start(ctx context.Context, run *entity.ScanRun) error
	// SetTotal records the number of items once reconciliation has counted them.
	SetTotal(ctx context.Context, id string, total int) error
	// Advance adds to the processed and failed counters of a run.
	Advance(ctx context.Context, id string, processed, failed int) error
	// Finish records the final state of a run.
	Finish(ctx context.Context, id string, state entity.RunState, at time.Time) error
	// Get returns a run, or ErrNotFound.
	Get(ctx context.Context, id string) (*entity.ScanRun, error)
}
