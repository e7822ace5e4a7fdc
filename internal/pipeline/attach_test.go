package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeValuesFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestReadValues(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		dim     string
		want    map[string]float64
	}{
		{
			name:    "flat JSON map",
			file:    "values.json",
			content: `{"T1": 12.5, "T2": 3, "T3": null}`,
			dim:     "elevation",
			want:    map[string]float64{"T1": 12.5, "T2": 3},
		},
		{
			name: "GeoJSON with dimension property",
			file: "values.geojson",
			content: `{"type":"FeatureCollection","features":[
				{"type":"Feature","geometry":{"type":"Point","coordinates":[0,0]},"properties":{"label":"T1","slope_value":0.05}},
				{"type":"Feature","geometry":{"type":"Point","coordinates":[0,0]},"properties":{"label":"T2"}}
			]}`,
			dim:  "slope",
			want: map[string]float64{"T1": 0.05},
		},
		{
			name: "GeoJSON with generic value property",
			file: "values.geojson",
			content: `{"type":"FeatureCollection","features":[
				{"type":"Feature","geometry":{"type":"Point","coordinates":[0,0]},"properties":{"label":"T1","value":7}}
			]}`,
			dim:  "elevation",
			want: map[string]float64{"T1": 7},
		},
		{
			name:    "CSV with header",
			file:    "values.csv",
			content: "label,value\nT1,0.05\nT2,oops\nT3,0.02\n",
			dim:     "slope",
			want:    map[string]float64{"T1": 0.05, "T3": 0.02},
		},
		{
			name:    "CSV without header",
			file:    "values.csv",
			content: "T1,30\nT2,8\n",
			dim:     "elevation",
			want:    map[string]float64{"T1": 30, "T2": 8},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeValuesFile(t, tt.file, tt.content)
			got, err := ReadValues(path, tt.dim)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadValuesUnsupportedFormat(t *testing.T) {
	path := writeValuesFile(t, "values.parquet", "x")
	_, err := ReadValues(path, "slope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported values format ".parquet"`)
}

func TestReadValuesMissingFile(t *testing.T) {
	_, err := ReadValues(filepath.Join(t.TempDir(), "nope.json"), "slope")
	assert.Error(t, err)
}

func TestAttachScoresSlope(t *testing.T) {
	cfg := testConfig(t)
	tp := newTestPipeline(t, cfg)
	dir := cfg.Output.Dir
	writeTransects(t, dir)

	// T9 has no matching transect and is dropped from the join.
	values := writeValuesFile(t, "slope.json", `{"T1": 0.05, "T9": 0.01}`)

	require.NoError(t, tp.p.AttachScores(context.Background(), dir, "slope", values))

	fc := readArtifact(t, dir, DimensionFile("slope"))
	assert.Len(t, fc.Features, 2, "joins never add features")
	props := propsByLabel(fc)

	t1 := props["T1"]
	assert.EqualValues(t, 0.05, t1["slope_value"])
	assert.EqualValues(t, 3, t1["slope_score"])
	assert.Equal(t, "Moderate", t1["slope_label"])
	assert.Equal(t, "#ffffbf", t1["slope_color"])

	t2 := props["T2"]
	assert.Nil(t, t2["slope_value"])
	assert.Nil(t, t2["slope_score"])
	assert.Equal(t, "No Data", t2["slope_label"])
	assert.Equal(t, "gray", t2["slope_color"])
}

func TestAttachScoresLandCover(t *testing.T) {
	cfg := testConfig(t)
	tp := newTestPipeline(t, cfg)
	dir := cfg.Output.Dir
	writeTransects(t, dir)

	// T1 carries a mapped raster code, T2 an unmapped one.
	values := writeValuesFile(t, "land_cover.json", `{"T1": 50, "T2": 7}`)

	require.NoError(t, tp.p.AttachScores(context.Background(), dir, "land_cover", values))

	props := propsByLabel(readArtifact(t, dir, DimensionFile("land_cover")))

	t1 := props["T1"]
	assert.EqualValues(t, 50, t1["land_cover_value"])
	assert.EqualValues(t, 1, t1["land_cover_score"])
	assert.Equal(t, "Developed", t1["land_cover_label"])
	assert.Equal(t, "#ff0000", t1["land_cover_color"])

	t2 := props["T2"]
	assert.EqualValues(t, 7, t2["land_cover_value"], "the raw code is kept even when unmapped")
	assert.Nil(t, t2["land_cover_score"])
	assert.Equal(t, "No Data", t2["land_cover_label"])
	assert.Equal(t, "gray", t2["land_cover_color"])
}

func TestAttachScoresElevationCSV(t *testing.T) {
	cfg := testConfig(t)
	tp := newTestPipeline(t, cfg)
	dir := cfg.Output.Dir
	writeTransects(t, dir)

	values := writeValuesFile(t, "elevation.csv", "label,value\nT1,3.2\nT2,24\n")

	require.NoError(t, tp.p.AttachScores(context.Background(), dir, "elevation", values))

	props := propsByLabel(readArtifact(t, dir, DimensionFile("elevation")))
	assert.EqualValues(t, 5, props["T1"]["elevation_score"], "3.2 m is below the 5 m bound")
	assert.EqualValues(t, 2, props["T2"]["elevation_score"])
}

func TestAttachScoresUnsupportedDimension(t *testing.T) {
	cfg := testConfig(t)
	tp := newTestPipeline(t, cfg)
	dir := cfg.Output.Dir
	writeTransects(t, dir)

	values := writeValuesFile(t, "values.json", `{"T1": 1}`)
	err := tp.p.AttachScores(context.Background(), dir, "erosion", values)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported dimension "erosion"`)
}
