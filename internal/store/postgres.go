package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/hartis-org/cvi-workflow/internal/cvi"
	"github.com/hartis-org/cvi-workflow/internal/db"
	"github.com/hartis-org/cvi-workflow/internal/feature"
	"github.com/hartis-org/cvi-workflow/internal/model"
)

// PostGISLoader pushes a finished run into PostGIS so transects can be
// queried spatially alongside other coastal datasets. It is a loader, not a
// Store: run history stays in SQLite.
type PostGISLoader struct {
	pool   db.Pool
	schema string
}

// NewPostGISLoader creates a loader writing into the given schema.
func NewPostGISLoader(pool db.Pool, schema string) *PostGISLoader {
	if schema == "" {
		schema = "cvi"
	}
	return &PostGISLoader{pool: pool, schema: schema}
}

// NewPool connects a pgx pool suitable for bulk loading.
func NewPool(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return pool, nil
}

const postgisSchemaTemplate = `
CREATE EXTENSION IF NOT EXISTS postgis;

CREATE SCHEMA IF NOT EXISTS %[1]s;

CREATE TABLE IF NOT EXISTS %[1]s.runs (
	id         TEXT PRIMARY KEY,
	area       TEXT NOT NULL,
	status     TEXT NOT NULL,
	params     JSONB,
	result     JSONB,
	error      TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS %[1]s.transects (
	run_id           TEXT NOT NULL REFERENCES %[1]s.runs(id) ON DELETE CASCADE,
	label            TEXT NOT NULL,
	land_cover_score DOUBLE PRECISION,
	slope_score      DOUBLE PRECISION,
	erosion_score    DOUBLE PRECISION,
	elevation_score  DOUBLE PRECISION,
	cvi_raw          DOUBLE PRECISION,
	cvi_norm         DOUBLE PRECISION,
	cvi_rank         INTEGER,
	cvi_label        TEXT,
	cvi_color        TEXT,
	geom             geometry(LineString, 4326),
	PRIMARY KEY (run_id, label)
);

CREATE INDEX IF NOT EXISTS idx_%[2]s_runs_status ON %[1]s.runs (status);
CREATE INDEX IF NOT EXISTS idx_%[2]s_transects_geom ON %[1]s.transects USING gist (geom);
`

// EnsureSchema creates the schema, tables, and spatial index if missing.
func (l *PostGISLoader) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(postgisSchemaTemplate,
		pgx.Identifier{l.schema}.Sanitize(), l.schema)
	if _, err := l.pool.Exec(ctx, ddl); err != nil {
		return eris.Wrapf(err, "postgres: ensure schema %s", l.schema)
	}
	return nil
}

// runColumns matches the column order LoadRun upserts.
var runColumns = []string{"id", "area", "status", "params", "result", "error", "created_at", "updated_at"}

// LoadRun upserts run metadata, so reloading is idempotent.
func (l *PostGISLoader) LoadRun(ctx context.Context, run *model.Run) error {
	paramsJSON, err := json.Marshal(run.Params)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal params")
	}
	var resultJSON any
	if run.Result != nil {
		data, err := json.Marshal(run.Result)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal result")
		}
		resultJSON = string(data)
	}

	row := []any{
		run.ID, run.Area, string(run.Status),
		string(paramsJSON), resultJSON, nullableString(run.Error),
		run.CreatedAt, run.UpdatedAt,
	}

	if _, err := db.BulkUpsert(ctx, l.pool, db.UpsertConfig{
		Table:        pgx.Identifier{l.schema, "runs"},
		Columns:      runColumns,
		ConflictKeys: []string{"id"},
	}, [][]any{row}); err != nil {
		return eris.Wrapf(err, "postgres: load run %s", run.ID)
	}
	return nil
}

// transectColumns matches the row layout transectRow builds.
var transectColumns = []string{
	"run_id", "label",
	"land_cover_score", "slope_score", "erosion_score", "elevation_score",
	"cvi_raw", "cvi_norm", "cvi_rank", "cvi_label", "cvi_color",
	"geom",
}

// LoadTransects replaces the transect rows of a run with the features of the
// final pipeline artifact. Returns the number of rows written.
func (l *PostGISLoader) LoadTransects(ctx context.Context, runID string, fc *geojson.FeatureCollection) (int64, error) {
	rows := make([][]any, 0, len(fc.Features))
	var skipped int

	for _, f := range fc.Features {
		row, err := l.transectRow(runID, f)
		if err != nil {
			skipped++
			continue
		}
		rows = append(rows, row)
	}
	if skipped > 0 {
		zap.L().Warn("skipping transect features without line geometry",
			zap.String("run_id", runID),
			zap.Int("skipped", skipped),
		)
	}

	_, err := l.pool.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s.transects WHERE run_id = $1`, pgx.Identifier{l.schema}.Sanitize()),
		runID,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: clear transects for run %s", runID)
	}

	n, err := db.Copy(ctx, l.pool, pgx.Identifier{l.schema, "transects"}, transectColumns, rows)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: load transects for run %s", runID)
	}
	return n, nil
}

func (l *PostGISLoader) transectRow(runID string, f *geojson.Feature) ([]any, error) {
	label, ok := feature.PropertyString(f, "label")
	if !ok {
		return nil, eris.New("feature has no label")
	}
	line, ok := f.Geometry.(*geom.LineString)
	if !ok {
		return nil, eris.Errorf("feature %s is not a line", label)
	}

	wkb, err := ewkb.Marshal(line.SetSRID(4326), ewkb.NDR)
	if err != nil {
		return nil, eris.Wrapf(err, "encode transect %s", label)
	}

	row := []any{runID, label}
	for _, dim := range cvi.DefaultDimensions {
		row = append(row, nullableFloat(f, dim+"_score"))
	}
	row = append(row,
		nullableFloat(f, "CVI_equal"),
		nullableFloat(f, "CVI_equal_norm"),
		nullableRank(f, "CVI_equal_class"),
		nullablePropString(f, "CVI_equal_label"),
		nullablePropString(f, "CVI_equal_color"),
		wkb,
	)
	return row, nil
}

func nullableFloat(f *geojson.Feature, key string) any {
	if v, ok := feature.PropertyFloat(f, key); ok {
		return v
	}
	return nil
}

func nullableRank(f *geojson.Feature, key string) any {
	if v, ok := feature.PropertyFloat(f, key); ok {
		return int32(v)
	}
	return nil
}

func nullablePropString(f *geojson.Feature, key string) any {
	if v, ok := feature.PropertyString(f, key); ok {
		return v
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
