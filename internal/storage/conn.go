package storage

import (
	"context"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
)

// pgConn is the slice of *pgxpool.Pool's API the loaders need. Accepting
// this interface rather than the concrete pool type lets unit tests
// exercise sub-batching and SQL-shape logic against a fake, without a real
// database.
type pgConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
