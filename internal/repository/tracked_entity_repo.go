package repository

import (
	"context"

	"github.com/user/linkchecker-service/internal/entity"
)

// TrackedEntityRepository defines the contract for the per-(entity type,
// field, entity id) last-processed table.
type TrackedEntityRepository interface {
	// PruneUnconfigured deletes rows whose (entity type, field) is not in
	// targets. An empty targets list deletes every row.
	PruneUnconfigured(ctx context.Context, targets []entity.Target) (int64, error)
	// ListByTarget returns every tracked row for one target.
	ListByTarget(ctx context.Context, target entity.Target) ([]entity.TrackedEntity, error)
	// InsertNew inserts the given ids with a NULL last_changed, skipping ids
	// already tracked for the target.
	InsertNew(ctx context.Context, target entity.Target, ids []int64) (int64, error)
	// Delete removes a single tracked row.
	Delete(ctx context.Context, target entity.Target, id int64) error
}

// ExtractionCommitter persists the outcome of extracting one entity.
type ExtractionCommitter interface {
	// CommitExtraction inserts links and advances the entity's last_changed
	// to e.Modified in a single transaction.
	CommitExtraction(ctx context.Context, e entity.TrackedEntity, links []entity.LinkRecord) error
}
