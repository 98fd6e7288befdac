package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/linkchecker-service/internal/entity"
	"github.com/user/linkchecker-service/internal/repository"
)

func TestContentStore_QueryIDsMatching(t *testing.T) {
	mock := newMock(t)
	store := NewContentStore(mock)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT DISTINCT "entity_id" FROM "node__body" ORDER BY "entity_id";`)).
		WillReturnRows(pgxmock.NewRows([]string{"entity_id"}).AddRow(int64(1)).AddRow(int64(4)))

	ids, err := store.QueryIDsMatching(context.Background(), entity.Target{EntityType: "node", Field: "body"})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 4}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContentStore_SpecialTables(t *testing.T) {
	mock := newMock(t)
	store := NewContentStore(mock)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT DISTINCT "tid" FROM "taxonomy_term_field_data"`)).
		WillReturnRows(pgxmock.NewRows([]string{"tid"}).AddRow(int64(3)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "link__uri" FROM "menu_link_content_data" WHERE "id" = $1`)).
		WithArgs(int64(2)).
		WillReturnRows(pgxmock.NewRows([]string{"link__uri"}).AddRow("internal:/about"))

	_, err := store.QueryIDsMatching(context.Background(), entity.Target{EntityType: "taxonomy_term", Field: "description"})
	require.NoError(t, err)

	values, err := store.GetFieldValues(context.Background(),
		entity.Target{EntityType: "menu_link_content", Field: "link"}, 2, entity.KindLink)
	require.NoError(t, err)
	assert.Equal(t, []string{"internal:/about"}, values)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContentStore_GetFieldValues_LinkColumn(t *testing.T) {
	mock := newMock(t)
	store := NewContentStore(mock)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "field_links_uri" FROM "node__field_links" WHERE "entity_id" = $1`)).
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows([]string{"field_links_uri"}).AddRow("https://a.example").AddRow("https://b.example"))

	values, err := store.GetFieldValues(context.Background(),
		entity.Target{EntityType: "node", Field: "field_links"}, 5, entity.KindLink)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, values)
}

func TestContentStore_RejectsUnsafeIdentifiers(t *testing.T) {
	mock := newMock(t)
	store := NewContentStore(mock)

	_, err := store.QueryIDsMatching(context.Background(), entity.Target{EntityType: "node; DROP TABLE x", Field: "body"})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContentStore_GetModifiedTimestamp(t *testing.T) {
	mock := newMock(t)
	store := NewContentStore(mock)
	changed := int64(1700000000)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT MAX(changed) FROM "node_field_data" WHERE "nid" = $1;`)).
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"max"}).AddRow(&changed))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT MAX(changed) FROM "menu_link_content_data" WHERE "id" = $1;`)).
		WithArgs(int64(9)).
		WillReturnRows(pgxmock.NewRows([]string{"max"}).AddRow((*int64)(nil)))

	ts, err := store.GetModifiedTimestamp(context.Background(), "node", 1)
	require.NoError(t, err)
	assert.True(t, ts.Equal(time.Unix(changed, 0)))

	_, err = store.GetModifiedTimestamp(context.Background(), "menu_link_content", 9)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContentStore_GetParagraphParent(t *testing.T) {
	mock := newMock(t)
	store := NewContentStore(mock)

	mock.ExpectQuery(regexp.QuoteMeta("FROM paragraphs_item_field_data WHERE id = $1")).
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows([]string{"parent_type", "parent_id"}).AddRow("paragraph", "3"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM paragraphs_item_field_data WHERE id = $1")).
		WithArgs(int64(6)).
		WillReturnError(pgx.ErrNoRows)

	parent, err := store.GetParagraphParent(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, entity.ParentRef{EntityType: "paragraph", EntityID: 3}, parent)

	_, err = store.GetParagraphParent(context.Background(), 6)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
