package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertConfig describes one idempotent bulk load: the target table, the
// column order of every row, and the key that decides whether a row is new
// or replaces an existing one.
type UpsertConfig struct {
	Table        pgx.Identifier // schema-qualified target, e.g. {"cvi", "runs"}
	Columns      []string       // column order of each row
	ConflictKeys []string       // unique key the upsert resolves on
	UpdateCols   []string       // overwritten on conflict; nil means every non-key column
}

func (cfg UpsertConfig) validate() error {
	if len(cfg.Table) == 0 {
		return eris.New("db: upsert: no table specified")
	}
	if len(cfg.Columns) == 0 {
		return eris.New("db: upsert: no columns specified")
	}
	if len(cfg.ConflictKeys) == 0 {
		return eris.New("db: upsert: no conflict keys specified")
	}
	return nil
}

// staging names the session-local table rows are copied into before the
// merge. Derived from the target so loads into different tables within one
// session cannot collide.
func (cfg UpsertConfig) staging() pgx.Identifier {
	return pgx.Identifier{"_stage_" + strings.Join(cfg.Table, "_")}
}

// updateColumns resolves the SET list: UpdateCols when given, otherwise
// every column outside the conflict key.
func (cfg UpsertConfig) updateColumns() []string {
	if cfg.UpdateCols != nil {
		return cfg.UpdateCols
	}
	keys := make(map[string]bool, len(cfg.ConflictKeys))
	for _, k := range cfg.ConflictKeys {
		keys[k] = true
	}
	cols := make([]string, 0, len(cfg.Columns))
	for _, c := range cfg.Columns {
		if !keys[c] {
			cols = append(cols, c)
		}
	}
	return cols
}

// mergeSQL builds the INSERT ... ON CONFLICT DO UPDATE that folds the
// staging table into the target.
func (cfg UpsertConfig) mergeSQL() string {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) DO UPDATE SET",
		cfg.Table.Sanitize(),
		identList(cfg.Columns),
		identList(cfg.Columns),
		cfg.staging().Sanitize(),
		identList(cfg.ConflictKeys),
	)
	for i, col := range cfg.updateColumns() {
		if i > 0 {
			b.WriteByte(',')
		}
		q := pgx.Identifier{col}.Sanitize()
		fmt.Fprintf(&b, " %s = EXCLUDED.%s", q, q)
	}
	return b.String()
}

// BulkUpsert loads rows through a temp staging table and merges them into
// the target with INSERT ... ON CONFLICT, so reloading a run replaces its
// rows instead of duplicating them. COPY carries the bulk; the merge is a
// single statement. Returns the number of rows the target accepted.
func BulkUpsert(ctx context.Context, pool Pool, cfg UpsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := cfg.validate(); err != nil {
		return 0, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: upsert: begin tx")
	}
	defer tx.Rollback(ctx)

	target := cfg.Table.Sanitize()
	staging := cfg.staging()

	ddl := fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		staging.Sanitize(), target)
	if _, err := tx.Exec(ctx, ddl); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: stage %s", target)
	}

	if _, err := tx.CopyFrom(ctx, staging, cfg.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: COPY %d rows into %s", len(rows), staging.Sanitize())
	}

	tag, err := tx.Exec(ctx, cfg.mergeSQL())
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert: merge into %s", target)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: upsert: commit")
	}
	return tag.RowsAffected(), nil
}

// identList quotes column names for interpolation into generated SQL. Only
// identifiers pass through here; row values travel via COPY.
func identList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
