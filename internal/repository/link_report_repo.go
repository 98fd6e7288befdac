package repository

import (
	"context"

	"github.com/user/linkchecker-service/internal/entity"
)

// LinkReportRepository defines the interface for the discovered-links table.
type LinkReportRepository interface {
	// Insert stores a new record and sets its ID.
	Insert(ctx context.Context, rec *entity.LinkRecord) error
	// DeleteByEntity removes every record of one entity, across all fields.
	DeleteByEntity(ctx context.Context, entityType string, id int64) (int64, error)
	// DeleteByEntityField removes the records of one tracked (entity, field).
	DeleteByEntityField(ctx context.Context, target entity.Target, id int64) (int64, error)
	// PruneUnconfigured deletes records whose (entity type, field) is not in
	// targets. An empty targets list deletes every record.
	PruneUnconfigured(ctx context.Context, targets []entity.Target) (int64, error)
	// SelectUnchecked returns records still waiting for a liveness check.
	SelectUnchecked(ctx context.Context) ([]entity.LinkRecord, error)
	// SelectChecked returns records with an Ok or Broken status.
	SelectChecked(ctx context.Context) ([]entity.LinkRecord, error)
	// UpdateStatus records the outcome of a check.
	UpdateStatus(ctx context.Context, id int64, status entity.LinkStatus, reason string) error
	// Stats counts records by status.
	Stats(ctx context.Context) (entity.ReportStats, error)
}
