package repository

import (
	"context"
	"time"

	"github.com/user/linkchecker-service/internal/entity"
)

// ContentStore is the read-only view of the host content system.
type ContentStore interface {
	// QueryIDsMatching lists the live entity ids that carry the target field.
	QueryIDsMatching(ctx context.Context, target entity.Target) ([]int64, error)
	// GetModifiedTimestamp returns when an entity was last changed.
	// Returns ErrNotFound when no row matches.
	GetModifiedTimestamp(ctx context.Context, entityType string, id int64) (time.Time, error)
	// GetFieldValues returns the raw stored values of one entity field.
	GetFieldValues(ctx context.Context, target entity.Target, id int64, kind entity.ExtractionKind) ([]string, error)
	// GetParagraphParent returns the owner of a paragraph.
	// Returns ErrNotFound when the paragraph row is missing.
	GetParagraphParent(ctx context.Context, id int64) (entity.ParentRef, error)
}
