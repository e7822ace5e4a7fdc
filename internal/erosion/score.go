package erosion

import (
	"math/rand/v2"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/hartis-org/cvi-workflow/internal/feature"
	"github.com/hartis-org/cvi-workflow/internal/geometry"
	"github.com/hartis-org/cvi-workflow/internal/model"
)

// Rescale maps the three Deltares erosion classes onto the 1-5 vulnerability
// scale used everywhere else.
var Rescale = map[int]int{1: 1, 2: 3, 3: 5}

type classedSegment struct {
	a, b  geom.Coord
	class int
}

// MaxIntersecting returns, per transect label, the highest erosion class
// among WFS segments whose geometry intersects the transect. Transects that
// touch no segment are absent from the result.
func MaxIntersecting(transects []model.Transect, fc *geojson.FeatureCollection) map[string]int {
	segments := flattenSegments(fc)

	out := make(map[string]int, len(transects))
	for _, tr := range transects {
		best, found := 0, false
		for _, s := range segments {
			if s.class <= best && found {
				continue
			}
			if geometry.SegmentsIntersect(tr.Start, tr.End, s.a, s.b) {
				best, found = s.class, true
			}
		}
		if found {
			out[tr.Label] = best
		}
	}
	return out
}

// flattenSegments explodes feature lines into class-tagged segments so the
// intersection loop is a flat scan. Features without a numeric erosion
// property are dropped.
func flattenSegments(fc *geojson.FeatureCollection) []classedSegment {
	var out []classedSegment
	for _, f := range fc.Features {
		v, ok := feature.PropertyFloat(f, "erosion")
		if !ok {
			continue
		}
		class := int(v)
		for _, line := range featureLines(f.Geometry) {
			for i := 1; i < line.NumCoords(); i++ {
				out = append(out, classedSegment{
					a:     line.Coord(i - 1),
					b:     line.Coord(i),
					class: class,
				})
			}
		}
	}
	return out
}

func featureLines(g geom.T) []*geom.LineString {
	switch t := g.(type) {
	case *geom.LineString:
		return []*geom.LineString{t}
	case *geom.MultiLineString:
		out := make([]*geom.LineString, 0, t.NumLineStrings())
		for i := 0; i < t.NumLineStrings(); i++ {
			out = append(out, t.LineString(i))
		}
		return out
	}
	return nil
}

// Synthetic assigns random erosion classes 1-3 to every transect. It stands
// in when the WFS returns nothing so the rest of the pipeline still runs;
// a nil rand source uses the global one.
func Synthetic(transects []model.Transect, r *rand.Rand) map[string]int {
	zap.L().Warn("no WFS erosion data, generating synthetic classes",
		zap.Int("transects", len(transects)),
	)
	out := make(map[string]int, len(transects))
	for _, tr := range transects {
		if r != nil {
			out[tr.Label] = 1 + r.IntN(3)
		} else {
			out[tr.Label] = 1 + rand.IntN(3)
		}
	}
	return out
}
