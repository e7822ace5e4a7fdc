package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/hartis-org/cvi-workflow/internal/config"
	"github.com/hartis-org/cvi-workflow/internal/feature"
	"github.com/hartis-org/cvi-workflow/internal/model"
	"github.com/hartis-org/cvi-workflow/internal/store"
)

const testThresholdsYAML = `
meta:
  default_palette:
    "1": {color: "#2c7bb6"}
    "2": {color: "#abd9e9"}
    "3": {color: "#ffffbf"}
    "4": {color: "#fdae61"}
    "5": {color: "#d7191c"}
land_cover:
  classes:
    "1": {label: "Developed", color: "#ff0000", codes: [50]}
    "3": {label: "Vegetated", color: "#00ff00", codes: [10, 20, 30]}
    "5": {label: "Bare", color: "#aaaaaa", codes: [60]}
slope:
  classes:
    "1": {min: 0.090, label: "Very Low"}
    "2": {min: 0.060, max: 0.090, label: "Low"}
    "3": {min: 0.040, max: 0.060, label: "Moderate"}
    "4": {min: 0.025, max: 0.040, label: "High"}
    "5": {max: 0.025, label: "Very High"}
erosion:
  classes:
    "1": {min: 1, max: 1.5, label: "Very Low"}
    "3": {min: 2.5, max: 3.5, label: "Moderate"}
    "5": {min: 4.5, max: 5.5, label: "Very High"}
elevation:
  classes:
    "1": {min: 30, label: "Very Low"}
    "2": {min: 20, max: 30, label: "Low"}
    "3": {min: 10, max: 20, label: "Moderate"}
    "4": {min: 5, max: 10, label: "High"}
    "5": {max: 5, label: "Very High"}
total_cvi:
  fixed:
    "1": {min: 0, max: 1, label: "Very Low"}
    "2": {min: 1, max: 2, label: "Low"}
    "3": {min: 2, max: 3, label: "Moderate"}
    "4": {min: 3, max: 4, label: "High"}
    "5": {min: 4, label: "Very High"}
weights:
  land_cover: 1
  slope: 1
  erosion: 1
  elevation: 1
`

func testThresholds(t *testing.T) *config.ThresholdsConfig {
	t.Helper()
	path := filepath.Join(t.TempDir(), "thresholds.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testThresholdsYAML), 0644))

	th, err := config.LoadThresholds(path)
	require.NoError(t, err)
	return th
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Output: config.OutputConfig{Dir: t.TempDir()},
		Geocode: config.GeocodeConfig{
			UserAgent:  "cvi-test/1.0",
			RatePerSec: 100,
		},
		Erosion: config.ErosionConfig{SyntheticFallback: true},
		Sampling: config.SamplingConfig{
			SpacingM:        500,
			TransectLengthM: 400,
			MaxCoastM:       15000,
		},
		Fetch: config.FetchConfig{MaxAttempts: 3},
	}
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

type testPipeline struct {
	p         *Pipeline
	store     store.Store
	nominatim *mockGeocoder
	overpass  *mockCoastliner
	erosion   *mockErosionClient
}

func newTestPipeline(t *testing.T, cfg *config.Config) *testPipeline {
	t.Helper()
	tp := &testPipeline{
		store:     newTestStore(t),
		nominatim: &mockGeocoder{},
		overpass:  &mockCoastliner{},
		erosion:   &mockErosionClient{},
	}
	tp.p = New(cfg, testThresholds(t), tp.store, tp.nominatim, tp.overpass, tp.erosion)
	return tp
}

// straightCoastline is a west-to-east line at a fixed latitude, about 2.2 km
// long in the Mercator frame, which yields five transects at 500 m spacing.
func straightCoastline() []*geom.LineString {
	return []*geom.LineString{
		geom.NewLineStringFlat(geom.XY, []float64{
			-80.20, 25.76,
			-80.19, 25.76,
			-80.18, 25.76,
		}),
	}
}

// miamiBoundingBox is a Nominatim-style bounding box covering the test
// coastline: [min_lat, max_lat, min_lon, max_lon] as strings.
var miamiBoundingBox = []string{"25.70", "25.90", "-80.25", "-80.15"}

// writeTransects writes a two-transect artifact into dir and returns the
// transects, both perpendicular to a west-east shore at 25.76°N.
func writeTransects(t *testing.T, dir string) []model.Transect {
	t.Helper()
	transects := []model.Transect{
		{Label: "T1", Index: 0, Start: geom.Coord{-80.19, 25.755}, End: geom.Coord{-80.19, 25.765}},
		{Label: "T2", Index: 1, Start: geom.Coord{-80.17, 25.755}, End: geom.Coord{-80.17, 25.765}},
	}
	fc := feature.TransectCollection(transects, 2.0)
	require.NoError(t, feature.WriteCollection(filepath.Join(dir, TransectsFile), fc))
	return transects
}

func readArtifact(t *testing.T, dir, name string) *geojson.FeatureCollection {
	t.Helper()
	fc, err := feature.ReadCollection(filepath.Join(dir, name))
	require.NoError(t, err)
	return fc
}

// propsByLabel indexes feature properties by their label for assertions.
func propsByLabel(fc *geojson.FeatureCollection) map[string]map[string]any {
	out := make(map[string]map[string]any, len(fc.Features))
	for _, f := range fc.Features {
		label, _ := f.Properties["label"].(string)
		out[label] = f.Properties
	}
	return out
}
