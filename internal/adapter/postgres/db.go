package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/user/linkchecker-service/internal/entity"
)

// DB is the subset of *pgxpool.Pool the repositories use.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// splitTargets turns targets into parallel arrays for unnest($1::text[], $2::text[]).
func splitTargets(targets []entity.Target) (types, fields []string) {
	types = make([]string, 0, len(targets))
	fields = make([]string, 0, len(targets))
	for _, t := range targets {
		types = append(types, t.EntityType)
		fields = append(fields, t.Field)
	}
	return types, fields
}
