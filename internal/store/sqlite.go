package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/hartis-org/cvi-workflow/internal/model"
)

// SQLiteStore keeps the run ledger in a single SQLite file next to the
// pipeline outputs. modernc.org/sqlite is pure Go, so the CLI stays CGO-free.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens the database at dsn, creating it if missing. WAL mode lets
// the API server read run history while a pipeline run writes to it.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{"journal_mode=WAL", "busy_timeout=5000", "synchronous=NORMAL"} {
		if _, err := db.Exec("PRAGMA " + pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: pragma %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	area       TEXT NOT NULL,
	params     TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	result     TEXT,
	error      TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_area ON runs(area);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

// runCols is the column order scanRun expects.
const runCols = "id, area, params, status, result, error, created_at, updated_at"

const defaultListLimit = 100

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteSchema)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, area string, params model.RunParams) (*model.Run, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal params")
	}

	run := &model.Run{
		ID:        uuid.New().String(),
		Area:      area,
		Status:    model.RunStatusQueued,
		Params:    params,
		CreatedAt: time.Now().UTC(),
	}
	run.UpdatedAt = run.CreatedAt

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, area, params, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Area, string(paramsJSON), string(run.Status), run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert run for %q", area)
	}
	return run, nil
}

// updateRun applies a SET clause to one run, stamping updated_at. Zero
// affected rows means the id is unknown.
func (s *SQLiteStore) updateRun(ctx context.Context, runID, set string, args ...any) error {
	args = append(args, time.Now().UTC(), runID)
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET `+set+`, updated_at = ? WHERE id = ?`, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run %s", runID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	return s.updateRun(ctx, runID, `status = ?`, string(status))
}

// UpdateRunResult stores the result payload and moves the run to complete.
func (s *SQLiteStore) UpdateRunResult(ctx context.Context, runID string, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}
	return s.updateRun(ctx, runID, `result = ?, status = ?`, string(resultJSON), string(model.RunStatusComplete))
}

// UpdateRunError records the failure message and moves the run to failed.
func (s *SQLiteStore) UpdateRunError(ctx context.Context, runID string, message string) error {
	return s.updateRun(ctx, runID, `error = ?, status = ?`, message, string(model.RunStatusFailed))
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runCols+` FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	return run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	var conds []string
	var args []any
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Area != "" {
		conds = append(conds, "area = ?")
		args = append(args, filter.Area)
	}
	if !filter.CreatedAfter.IsZero() {
		conds = append(conds, "created_at > ?")
		args = append(args, filter.CreatedAfter.UTC())
	}

	query := `SELECT ` + runCols + ` FROM runs`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: list runs")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// scanRun decodes one runs row. The caller maps sql.ErrNoRows.
func scanRun(scan func(dest ...any) error) (*model.Run, error) {
	var (
		r          model.Run
		paramsJSON string
		resultJSON sql.NullString
		errMsg     sql.NullString
	)
	if err := scan(&r.ID, &r.Area, &paramsJSON, &r.Status, &resultJSON, &errMsg, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(paramsJSON), &r.Params); err != nil {
		return nil, eris.Wrap(err, "sqlite: decode params")
	}
	if resultJSON.Valid {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), r.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: decode result")
		}
	}
	r.Error = errMsg.String
	return &r, nil
}
