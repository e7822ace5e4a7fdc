package erosion

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/hartis-org/cvi-workflow/internal/model"
)

func segmentFeature(class any, flat ...float64) *geojson.Feature {
	return &geojson.Feature{
		Geometry:   geom.NewLineStringFlat(geom.XY, flat),
		Properties: map[string]any{"erosion": class},
	}
}

func TestMaxIntersecting(t *testing.T) {
	transects := []model.Transect{
		{Label: "T1", Index: 0, Start: geom.Coord{1, -1}, End: geom.Coord{1, 1}},
		{Label: "T2", Index: 1, Start: geom.Coord{50, -1}, End: geom.Coord{50, 1}},
	}

	fc := &geojson.FeatureCollection{Features: []*geojson.Feature{
		// Both cross T1; the max class wins.
		segmentFeature(2.0, 0, 0, 2, 0),
		segmentFeature(3.0, 0, 0.5, 2, 0.5),
		// Far away from both transects.
		segmentFeature(1.0, 10, 10, 12, 10),
	}}

	got := MaxIntersecting(transects, fc)
	assert.Equal(t, map[string]int{"T1": 3}, got)
	_, ok := got["T2"]
	assert.False(t, ok)
}

func TestMaxIntersectingMultiLineString(t *testing.T) {
	transects := []model.Transect{
		{Label: "T1", Index: 0, Start: geom.Coord{1, -1}, End: geom.Coord{1, 1}},
	}

	mls := geom.NewMultiLineStringFlat(geom.XY, []float64{
		5, 5, 6, 5, // part away from the transect
		0, 0, 2, 0, // part crossing it
	}, []int{4, 8})

	fc := &geojson.FeatureCollection{Features: []*geojson.Feature{{
		Geometry:   mls,
		Properties: map[string]any{"erosion": 2.0},
	}}}

	assert.Equal(t, map[string]int{"T1": 2}, MaxIntersecting(transects, fc))
}

func TestMaxIntersectingSkipsUnclassedFeatures(t *testing.T) {
	transects := []model.Transect{
		{Label: "T1", Index: 0, Start: geom.Coord{1, -1}, End: geom.Coord{1, 1}},
	}

	fc := &geojson.FeatureCollection{Features: []*geojson.Feature{
		{
			Geometry:   geom.NewLineStringFlat(geom.XY, []float64{0, 0, 2, 0}),
			Properties: map[string]any{"name": "unclassified"},
		},
	}}

	assert.Empty(t, MaxIntersecting(transects, fc))
}

func TestSynthetic(t *testing.T) {
	transects := []model.Transect{
		{Label: "T1"}, {Label: "T2"}, {Label: "T3"}, {Label: "T4"},
	}

	got := Synthetic(transects, rand.New(rand.NewPCG(7, 11)))
	require.Len(t, got, 4)
	for label, class := range got {
		assert.GreaterOrEqual(t, class, 1, "label %s", label)
		assert.LessOrEqual(t, class, 3, "label %s", label)
	}

	// Same seed, same classes.
	again := Synthetic(transects, rand.New(rand.NewPCG(7, 11)))
	assert.Equal(t, got, again)
}

func TestRescale(t *testing.T) {
	assert.Equal(t, map[int]int{1: 1, 2: 3, 3: 5}, Rescale)
}
