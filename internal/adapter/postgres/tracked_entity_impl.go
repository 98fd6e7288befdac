package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/user/linkchecker-service/internal/entity"
)

// TrackedEntityRepoImpl provides a concrete implementation of the
// TrackedEntityRepository and ExtractionCommitter interfaces.
type TrackedEntityRepoImpl struct {
	db DB
}

// NewTrackedEntityRepo creates a new instance of TrackedEntityRepoImpl.
func NewTrackedEntityRepo(db DB) *TrackedEntityRepoImpl {
	return &TrackedEntityRepoImpl{db: db}
}

// PruneUnconfigured deletes tracked rows outside the configured targets.
func (r *TrackedEntityRepoImpl) PruneUnconfigured(ctx context.Context, targets []entity.Target) (int64, error) {
	types, fields := splitTargets(targets)
	query := `
		DELETE FROM tracked_entity t
		WHERE NOT EXISTS (
			SELECT 1 FROM unnest($1::text[], $2::text[]) AS c(entity_type, entity_field)
			WHERE c.entity_type = t.entity_type AND c.entity_field = t.entity_field
		);
	`
	tag, err := r.db.Exec(ctx, query, types, fields)
	if err != nil {
		return 0, fmt.Errorf("prune tracked entities: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListByTarget returns every tracked row for one (entity type, field).
func (r *TrackedEntityRepoImpl) ListByTarget(ctx context.Context, target entity.Target) ([]entity.TrackedEntity, error) {
	query := `
		SELECT entity_id, last_changed
		FROM tracked_entity
		WHERE entity_type = $1 AND entity_field = $2
		ORDER BY entity_id;
	`
	rows, err := r.db.Query(ctx, query, target.EntityType, target.Field)
	if err != nil {
		return nil, fmt.Errorf("list tracked entities for %s: %w", target, err)
	}
	defer rows.Close()

	var out []entity.TrackedEntity
	for rows.Next() {
		e := entity.TrackedEntity{EntityType: target.EntityType, EntityField: target.Field}
		var lastChanged *time.Time
		if err := rows.Scan(&e.EntityID, &lastChanged); err != nil {
			return nil, fmt.Errorf("scan tracked entity: %w", err)
		}
		e.LastChanged = lastChanged
		out = append(out, e)
	}
	return out, rows.Err()
}

// InsertNew tracks ids not seen before with a NULL last_changed.
func (r *TrackedEntityRepoImpl) InsertNew(ctx context.Context, target entity.Target, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := `
		INSERT INTO tracked_entity (entity_type, entity_field, entity_id)
		SELECT $1, $2, unnest($3::bigint[])
		ON CONFLICT (entity_type, entity_field, entity_id) DO NOTHING;
	`
	tag, err := r.db.Exec(ctx, query, target.EntityType, target.Field, ids)
	if err != nil {
		return 0, fmt.Errorf("insert tracked entities for %s: %w", target, err)
	}
	return tag.RowsAffected(), nil
}

// Delete removes one tracked row.
func (r *TrackedEntityRepoImpl) Delete(ctx context.Context, target entity.Target, id int64) error {
	query := `DELETE FROM tracked_entity WHERE entity_type = $1 AND entity_field = $2 AND entity_id = $3;`
	if _, err := r.db.Exec(ctx, query, target.EntityType, target.Field, id); err != nil {
		return fmt.Errorf("delete tracked entity %s/%d: %w", target, id, err)
	}
	return nil
}

// CommitExtraction inserts the entity's links and advances last_changed in
// one transaction, so an interrupted run never marks an entity scanned
// without its links. last_changed never moves backwards.
func (r *TrackedEntityRepoImpl) CommitExtraction(ctx context.Context, e entity.TrackedEntity, links []entity.LinkRecord) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin extraction commit: %w", err)
	}
	defer tx.Rollback(ctx)

	for i := range links {
		l := &links[i]
		if err := tx.QueryRow(ctx, insertLinkQuery,
			l.EntityType, l.EntityField, l.EntityID, l.Alias, l.URL, statusValue(l.Status), l.Reason,
		).Scan(&l.ID); err != nil {
			return fmt.Errorf("insert link %q: %w", l.URL, err)
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE tracked_entity
		SET last_changed = $4
		WHERE entity_type = $1 AND entity_field = $2 AND entity_id = $3
		  AND (last_changed IS NULL OR last_changed < $4);
	`, e.EntityType, e.EntityField, e.EntityID, e.Modified)
	if err != nil {
		return fmt.Errorf("advance last_changed for %s/%d: %w", e.Target(), e.EntityID, err)
	}

	return tx.Commit(ctx)
}
