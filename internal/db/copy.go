package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Copy bulk-inserts rows with the PostgreSQL COPY protocol. A run at 50 m
// spacing produces tens of thousands of transect rows, far beyond
// comfortable INSERT territory.
func Copy(ctx context.Context, pool Pool, table pgx.Identifier, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := pool.CopyFrom(ctx, table, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY into %s", table.Sanitize())
	}
	return n, nil
}
