package postgres

import (
	"context"
	"fmt"

	"github.com/user/linkchecker-service/internal/entity"
	"github.com/user/linkchecker-service/internal/repository"
)

const insertLinkQuery = `
	INSERT INTO link_report (entity_type, entity_field, entity_id, alias, url, status, reason)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id;
`

const selectLinkColumns = `SELECT id, entity_type, entity_field, entity_id, alias, url, status, reason FROM link_report`

// LinkReportRepoImpl provides a concrete implementation of the LinkReportRepository interface.
type LinkReportRepoImpl struct {
	db DB
}

// NewLinkReportRepo creates a new instance of LinkReportRepoImpl.
func NewLinkReportRepo(db DB) *LinkReportRepoImpl {
	return &LinkReportRepoImpl{db: db}
}

// statusValue maps unchecked to NULL.
func statusValue(s entity.LinkStatus) *string {
	if s == entity.StatusUnchecked {
		return nil
	}
	v := s.String()
	return &v
}

func (r *LinkReportRepoImpl) Insert(ctx context.Context, rec *entity.LinkRecord) error {
	err := r.db.QueryRow(ctx, insertLinkQuery,
		rec.EntityType, rec.EntityField, rec.EntityID, rec.Alias, rec.URL, statusValue(rec.Status), rec.Reason,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("insert link %q: %w", rec.URL, err)
	}
	return nil
}

func (r *LinkReportRepoImpl) DeleteByEntity(ctx context.Context, entityType string, entityID int64) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM link_report WHERE entity_type = $1 AND entity_id = $2;`, entityType, entityID)
	if err != nil {
		return 0, fmt.Errorf("delete links of %s/%d: %w", entityType, entityID, err)
	}
	return tag.RowsAffected(), nil
}

func (r *LinkReportRepoImpl) DeleteByEntityField(ctx context.Context, target entity.Target, entityID int64) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM link_report WHERE entity_type = $1 AND entity_field = $2 AND entity_id = $3;`,
		target.EntityType, target.Field, entityID)
	if err != nil {
		return 0, fmt.Errorf("delete links of %s/%d: %w", target, entityID, err)
	}
	return tag.RowsAffected(), nil
}

// PruneUnconfigured deletes links whose (entity type, field) is no longer configured.
func (r *LinkReportRepoImpl) PruneUnconfigured(ctx context.Context, targets []entity.Target) (int64, error) {
	types, fields := splitTargets(targets)
	query := `
		DELETE FROM link_report l
		WHERE NOT EXISTS (
			SELECT 1 FROM unnest($1::text[], $2::text[]) AS c(entity_type, entity_field)
			WHERE c.entity_type = l.entity_type AND c.entity_field = l.entity_field
		);
	`
	tag, err := r.db.Exec(ctx, query, types, fields)
	if err != nil {
		return 0, fmt.Errorf("prune links: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SelectUnchecked returns links never checked, oldest first.
func (r *LinkReportRepoImpl) SelectUnchecked(ctx context.Context) ([]entity.LinkRecord, error) {
	return r.selectLinks(ctx, selectLinkColumns+` WHERE status IS NULL ORDER BY id;`)
}

// SelectChecked returns links with an ok or broken verdict.
func (r *LinkReportRepoImpl) SelectChecked(ctx context.Context) ([]entity.LinkRecord, error) {
	return r.selectLinks(ctx, selectLinkColumns+` WHERE status IS NOT NULL ORDER BY id;`)
}

func (r *LinkReportRepoImpl) selectLinks(ctx context.Context, query string) ([]entity.LinkRecord, error) {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select links: %w", err)
	}
	defer rows.Close()

	var out []entity.LinkRecord
	for rows.Next() {
		var (
			rec    entity.LinkRecord
			status *string
		)
		if err := rows.Scan(&rec.ID, &rec.EntityType, &rec.EntityField, &rec.EntityID,
			&rec.Alias, &rec.URL, &status, &rec.Reason); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		if status != nil {
			if rec.Status, err = entity.ParseLinkStatus(*status); err != nil {
				return nil, err
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// UpdateStatus records a verdict. Reason is stored as NULL when empty.
func (r *LinkReportRepoImpl) UpdateStatus(ctx context.Context, id int64, status entity.LinkStatus, reason string) error {
	var reasonArg *string
	if reason != "" {
		reasonArg = &reason
	}
	tag, err := r.db.Exec(ctx, `UPDATE link_report SET status = $2, reason = $3 WHERE id = $1;`,
		id, statusValue(status), reasonArg)
	if err != nil {
		return fmt.Errorf("update link %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("link %d: %w", id, repository.ErrNotFound)
	}
	return nil
}

func (r *LinkReportRepoImpl) Stats(ctx context.Context) (entity.ReportStats, error) {
	var s entity.ReportStats
	err := r.db.QueryRow(ctx, `
		SELECT
			count(*) FILTER (WHERE status = 'ok'),
			count(*) FILTER (WHERE status = 'broken'),
			count(*) FILTER (WHERE status IS NULL)
		FROM link_report;
	`).Scan(&s.Ok, &s.Broken, &s.Unchecked)
	if err != nil {
		return entity.ReportStats{}, fmt.Errorf("link stats: %w", err)
	}
	return s, nil
}
