package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/hartis-org/cvi-workflow/internal/aoi"
	"github.com/hartis-org/cvi-workflow/internal/feature"
	"github.com/hartis-org/cvi-workflow/internal/geocode"
)

func TestExtractCoastline(t *testing.T) {
	cfg := testConfig(t)
	tp := newTestPipeline(t, cfg)

	entry := aoi.Entry{Name: "Miami Beach", Country: "United States"}
	tp.nominatim.On("Search", mock.Anything, "Miami Beach, United States").
		Return([]geocode.Place{{DisplayName: "Miami Beach", BoundingBox: miamiBoundingBox}}, nil)
	tp.overpass.On("Coastline", mock.Anything, mock.Anything).
		Return(straightCoastline(), nil)

	dir := filepath.Join(cfg.Output.Dir, "run")
	res, err := tp.p.ExtractCoastline(context.Background(), entry, dir)
	require.NoError(t, err)

	assert.Equal(t, "Miami Beach, United States", res.Query)
	assert.Equal(t, 1, res.Segments)
	assert.Equal(t, 12, res.Zoom, "0.2 degree span maps to zoom 12")
	assert.NotEmpty(t, res.UUID)
	assert.InDelta(t, 25.70, res.BBox.MinLat, 1e-9)
	assert.InDelta(t, -80.15, res.BBox.MaxLon, 1e-9)

	coast := readArtifact(t, dir, CoastlineFile)
	assert.Len(t, coast.Features, 1)

	data, err := os.ReadFile(filepath.Join(dir, AOIFile))
	require.NoError(t, err)
	var meta map[string]any
	require.NoError(t, json.Unmarshal(data, &meta))
	assert.Equal(t, "CVI calculation", meta["process_type"])
	assert.Equal(t, "Miami Beach, United States", meta["area"])
	assert.EqualValues(t, 12, meta["zoom"])
	assert.Equal(t, res.UUID, meta["uuid"])

	tp.nominatim.AssertExpectations(t)
	tp.overpass.AssertExpectations(t)
}

func TestExtractCoastlineFallbackQuery(t *testing.T) {
	cfg := testConfig(t)
	tp := newTestPipeline(t, cfg)

	entry := aoi.Entry{Name: "Miami Beach", Country: "United States"}
	tp.nominatim.On("Search", mock.Anything, "Miami Beach, United States").
		Return([]geocode.Place{}, nil).Once()
	tp.nominatim.On("Search", mock.Anything, "Miami, United States").
		Return([]geocode.Place{{DisplayName: "Miami", BoundingBox: miamiBoundingBox}}, nil).Once()
	tp.overpass.On("Coastline", mock.Anything, mock.Anything).
		Return(straightCoastline(), nil)

	dir := filepath.Join(cfg.Output.Dir, "run")
	res, err := tp.p.ExtractCoastline(context.Background(), entry, dir)
	require.NoError(t, err)

	assert.Equal(t, "Miami, United States", res.Query, "suffix-stripped fallback resolved")

	data, err := os.ReadFile(filepath.Join(dir, AOIFile))
	require.NoError(t, err)
	var meta map[string]any
	require.NoError(t, json.Unmarshal(data, &meta))
	assert.Equal(t, "Miami, United States", meta["area"])

	tp.nominatim.AssertExpectations(t)
}

func TestExtractCoastlineNoCoastline(t *testing.T) {
	cfg := testConfig(t)
	tp := newTestPipeline(t, cfg)

	tp.nominatim.On("Search", mock.Anything, mock.Anything).
		Return([]geocode.Place{{DisplayName: "x", BoundingBox: miamiBoundingBox}}, nil)
	tp.overpass.On("Coastline", mock.Anything, mock.Anything).
		Return([]*geom.LineString{}, nil)

	entry := aoi.Entry{Name: "Miami Beach", Country: "United States"}
	_, err := tp.p.ExtractCoastline(context.Background(), entry, filepath.Join(cfg.Output.Dir, "run"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no coastline found for Miami Beach, United States")
}

func TestImportCoastlineLocalFile(t *testing.T) {
	cfg := testConfig(t)
	tp := newTestPipeline(t, cfg)

	src := filepath.Join(t.TempDir(), "miami_shore.geojson")
	require.NoError(t, feature.WriteCollection(src, feature.LineCollection(straightCoastline())))

	dir := filepath.Join(cfg.Output.Dir, "run")
	res, err := tp.p.ImportCoastline(context.Background(), src, dir)
	require.NoError(t, err)

	assert.Equal(t, "miami_shore", res.Query, "area named after the source file")
	assert.Equal(t, 1, res.Segments)
	assert.Equal(t, 13, res.Zoom, "0.02 degree span maps to zoom 13")
	assert.NotEmpty(t, res.UUID)
	assert.InDelta(t, -80.20, res.BBox.MinLon, 1e-9)
	assert.InDelta(t, -80.18, res.BBox.MaxLon, 1e-9)
	assert.InDelta(t, 25.76, res.BBox.MinLat, 1e-9)
	assert.InDelta(t, 25.76, res.BBox.MaxLat, 1e-9)

	coast := readArtifact(t, dir, CoastlineFile)
	assert.Len(t, coast.Features, 1)

	data, err := os.ReadFile(filepath.Join(dir, AOIFile))
	require.NoError(t, err)
	var meta map[string]any
	require.NoError(t, json.Unmarshal(data, &meta))
	assert.Equal(t, "miami_shore", meta["area"])
	assert.EqualValues(t, 13, meta["zoom"])

	tp.nominatim.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
	tp.overpass.AssertNotCalled(t, "Coastline", mock.Anything, mock.Anything)
}

func TestImportCoastlineRemoteSource(t *testing.T) {
	cfg := testConfig(t)
	tp := newTestPipeline(t, cfg)

	local := filepath.Join(t.TempDir(), "shore.geojson")
	require.NoError(t, feature.WriteCollection(local, feature.LineCollection(straightCoastline())))
	payload, err := os.ReadFile(local)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	dir := filepath.Join(cfg.Output.Dir, "run")
	res, err := tp.p.ImportCoastline(context.Background(), srv.URL+"/shore.geojson", dir)
	require.NoError(t, err)

	assert.Equal(t, "shore", res.Query)
	assert.Equal(t, 1, res.Segments)

	// The download is kept next to the artifacts for inspection.
	assert.FileExists(t, filepath.Join(dir, "source", "shore.geojson"))
	coast := readArtifact(t, dir, CoastlineFile)
	assert.Len(t, coast.Features, 1)
}

func TestImportCoastlineUnsupportedSource(t *testing.T) {
	cfg := testConfig(t)
	tp := newTestPipeline(t, cfg)

	_, err := tp.p.ImportCoastline(context.Background(), "shore.txt", filepath.Join(cfg.Output.Dir, "run"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported source extension")
}

func TestExtractCoastlineGeocodeErrors(t *testing.T) {
	cfg := testConfig(t)
	tp := newTestPipeline(t, cfg)

	tp.nominatim.On("Search", mock.Anything, mock.Anything).
		Return(nil, assert.AnError)

	// No country and no strippable suffix, so there are no fallback queries.
	entry := aoi.Entry{Name: "Atlantis"}
	_, err := tp.p.ExtractCoastline(context.Background(), entry, filepath.Join(cfg.Output.Dir, "run"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no coastline found")
	tp.overpass.AssertNotCalled(t, "Coastline", mock.Anything, mock.Anything)
}
