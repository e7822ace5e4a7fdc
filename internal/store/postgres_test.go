package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/hartis-org/cvi-workflow/internal/model"
)

func newMockLoader(t *testing.T) (*PostGISLoader, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostGISLoader(mock, "cvi"), mock
}

func TestEnsureSchema(t *testing.T) {
	loader, mock := newMockLoader(t)

	mock.ExpectExec("CREATE SCHEMA IF NOT EXISTS").WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, loader.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadRun(t *testing.T) {
	loader, mock := newMockLoader(t)

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_stage_cvi_runs"}, runColumns).WillReturnResult(1)
	mock.ExpectExec("INSERT INTO").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectRollback() // deferred rollback after commit is a no-op

	now := time.Now().UTC()
	run := &model.Run{
		ID:        "run-1",
		Area:      "Miami Beach, USA",
		Status:    model.RunStatusComplete,
		Params:    model.RunParams{SpacingM: 50, TransectLengthM: 400, MaxCoastM: 15000},
		Result:    &model.RunResult{Area: "Miami Beach, USA", Transects: 240},
		CreatedAt: now,
		UpdatedAt: now,
	}

	require.NoError(t, loader.LoadRun(context.Background(), run))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func transectFeature(label string, props map[string]any) *geojson.Feature {
	p := map[string]any{"label": label}
	for k, v := range props {
		p[k] = v
	}
	return &geojson.Feature{
		Geometry:   geom.NewLineStringFlat(geom.XY, []float64{-80.1, 25.7, -80.1, 25.9}),
		Properties: p,
	}
}

func TestLoadTransects(t *testing.T) {
	loader, mock := newMockLoader(t)

	mock.ExpectExec("DELETE FROM").WithArgs("run-1").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"cvi", "transects"}, transectColumns).WillReturnResult(2)

	fc := &geojson.FeatureCollection{Features: []*geojson.Feature{
		transectFeature("T1", map[string]any{
			"land_cover_score": 3.0,
			"slope_score":      5.0,
			"erosion_score":    1.0,
			"elevation_score":  2.0,
			"CVI_equal":        2.74,
			"CVI_equal_norm":   0.35,
			"CVI_equal_class":  3.0,
			"CVI_equal_label":  "Moderate",
			"CVI_equal_color":  "yellow",
		}),
		// No scores at all still loads; columns stay NULL.
		transectFeature("T2", nil),
	}}

	n, err := loader.LoadTransects(context.Background(), "run-1", fc)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadTransectsSkipsNonLines(t *testing.T) {
	loader, mock := newMockLoader(t)

	mock.ExpectExec("DELETE FROM").WithArgs("run-9").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"cvi", "transects"}, transectColumns).WillReturnResult(1)

	fc := &geojson.FeatureCollection{Features: []*geojson.Feature{
		transectFeature("T1", nil),
		{
			Geometry:   geom.NewPointFlat(geom.XY, []float64{-80.1, 25.7}),
			Properties: map[string]any{"label": "not-a-line"},
		},
	}}

	n, err := loader.LoadTransects(context.Background(), "run-9", fc)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransectRowLayout(t *testing.T) {
	loader := NewPostGISLoader(nil, "")

	f := transectFeature("T7", map[string]any{
		"slope_score":     4.0,
		"CVI_equal_class": 2.0,
		"CVI_equal_label": "Low",
	})

	row, err := loader.transectRow("run-3", f)
	require.NoError(t, err)
	require.Len(t, row, len(transectColumns))

	assert.Equal(t, "run-3", row[0])
	assert.Equal(t, "T7", row[1])
	assert.Nil(t, row[2], "land_cover_score absent")
	assert.Equal(t, 4.0, row[3], "slope_score")
	assert.Equal(t, int32(2), row[8], "cvi_rank")
	assert.Equal(t, "Low", row[9], "cvi_label")
	assert.Nil(t, row[10], "cvi_color absent")
	assert.NotEmpty(t, row[len(row)-1], "EWKB geometry")
}
