package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/user/linkchecker-service/internal/entity"
	"github.com/user/linkchecker-service/internal/repository"
)

var identPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// entityKeys maps an entity type to the id column of its base and data tables.
var entityKeys = map[string]string{
	"node":          "nid",
	"media":         "mid",
	"taxonomy_term": "tid",
	"user":          "uid",
}

func entityKey(entityType string) string {
	if k, ok := entityKeys[entityType]; ok {
		return k
	}
	return "id"
}

// dataTable returns the table holding the entity's `changed` column.
func dataTable(entityType string) string {
	if entityType == "menu_link_content" {
		return "menu_link_content_data"
	}
	return entityType + "_field_data"
}

// fieldStorage locates the values of one configured field.
type fieldStorage struct {
	table  string
	idCol  string
	column string
	order  string
}

func storageFor(target entity.Target, kind entity.ExtractionKind) fieldStorage {
	switch target.String() {
	case "taxonomy_term.description":
		return fieldStorage{"taxonomy_term_field_data", "tid", "description__value", "langcode"}
	case "menu_link_content.link":
		return fieldStorage{"menu_link_content_data", "id", "link__uri", "langcode"}
	}
	suffix := "_value"
	if kind == entity.KindLink {
		suffix = "_uri"
	}
	return fieldStorage{target.EntityType + "__" + target.Field, "entity_id", target.Field + suffix, "delta"}
}

func ident(name string) (string, error) {
	if !identPattern.MatchString(name) {
		return "", fmt.Errorf("unsafe identifier %q", name)
	}
	return pgx.Identifier{name}.Sanitize(), nil
}

// ContentStoreImpl reads the CMS content tables. Table and column names are
// derived from configuration and quoted; values are always bound parameters.
type ContentStoreImpl struct {
	db DB
}

// NewContentStore creates a new instance of ContentStoreImpl.
func NewContentStore(db DB) *ContentStoreImpl {
	return &ContentStoreImpl{db: db}
}

// QueryIDsMatching returns the ids of entities with at least one stored value for the field.
func (s *ContentStoreImpl) QueryIDsMatching(ctx context.Context, target entity.Target) ([]int64, error) {
	fs := storageFor(target, entity.KindPlain)
	table, err := ident(fs.table)
	if err != nil {
		return nil, err
	}
	idCol, err := ident(fs.idCol)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT DISTINCT %[1]s FROM %[2]s ORDER BY %[1]s;`, idCol, table)

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query ids for %s: %w", target, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetModifiedTimestamp returns the entity's last change time across translations.
func (s *ContentStoreImpl) GetModifiedTimestamp(ctx context.Context, entityType string, id int64) (time.Time, error) {
	table, err := ident(dataTable(entityType))
	if err != nil {
		return time.Time{}, err
	}
	key, err := ident(entityKey(entityType))
	if err != nil {
		return time.Time{}, err
	}
	query := fmt.Sprintf(`SELECT MAX(changed) FROM %s WHERE %s = $1;`, table, key)

	var changed *int64
	if err := s.db.QueryRow(ctx, query, id).Scan(&changed); err != nil {
		return time.Time{}, fmt.Errorf("modified timestamp of %s/%d: %w", entityType, id, err)
	}
	if changed == nil {
		return time.Time{}, fmt.Errorf("%s/%d: %w", entityType, id, repository.ErrNotFound)
	}
	return time.Unix(*changed, 0).UTC(), nil
}

// GetFieldValues returns the raw stored values of one field of one entity.
func (s *ContentStoreImpl) GetFieldValues(ctx context.Context, target entity.Target, id int64, kind entity.ExtractionKind) ([]string, error) {
	fs := storageFor(target, kind)
	table, err := ident(fs.table)
	if err != nil {
		return nil, err
	}
	idCol, err := ident(fs.idCol)
	if err != nil {
		return nil, err
	}
	col, err := ident(fs.column)
	if err != nil {
		return nil, err
	}
	order, err := ident(fs.order)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %[1]s FROM %[2]s WHERE %[3]s = $1 AND %[1]s IS NOT NULL ORDER BY %[4]s;`,
		col, table, idCol, order)

	rows, err := s.db.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("field values of %s/%d: %w", target, id, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan field value: %w", err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// GetParagraphParent returns the entity a paragraph is attached to.
func (s *ContentStoreImpl) GetParagraphParent(ctx context.Context, id int64) (entity.ParentRef, error) {
	var parentType, parentID string
	err := s.db.QueryRow(ctx,
		`SELECT parent_type, parent_id FROM paragraphs_item_field_data WHERE id = $1 LIMIT 1;`, id,
	).Scan(&parentType, &parentID)
	if errors.Is(err, pgx.ErrNoRows) {
		return entity.ParentRef{}, fmt.Errorf("paragraph %d: %w", id, repository.ErrNotFound)
	}
	if err != nil {
		return entity.ParentRef{}, fmt.Errorf("parent of paragraph %d: %w", id, err)
	}
	pid, err := strconv.ParseInt(parentID, 10, 64)
	if err != nil {
		return entity.ParentRef{}, fmt.Errorf("paragraph %d has malformed parent id %q: %w", id, parentID, err)
	}
	return entity.ParentRef{EntityType: parentType, EntityID: pid}, nil
}
