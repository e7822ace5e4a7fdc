package coastline

import (
	"math"

	"github.com/twpayne/go-geom"

	"github.com/hartis-org/cvi-workflow/internal/model"
)

// Spherical-Mercator constants (EPSG:3857). Transect spacing and length are
// metric, so sampling runs in this frame and endpoints are projected back to
// lon/lat for the artifacts.
const (
	earthRadius = 6378137.0
	maxMercLat  = 85.05112878
)

// ToMercator projects a lon/lat coordinate to EPSG:3857 meters. Latitudes
// beyond the projection's valid range are clamped.
func ToMercator(lon, lat float64) (x, y float64) {
	if lat > maxMercLat {
		lat = maxMercLat
	} else if lat < -maxMercLat {
		lat = -maxMercLat
	}
	x = earthRadius * lon * math.Pi / 180
	y = earthRadius * math.Log(math.Tan(math.Pi/4+lat*math.Pi/360))
	return x, y
}

// ToLonLat inverts ToMercator.
func ToLonLat(x, y float64) (lon, lat float64) {
	lon = x / earthRadius * 180 / math.Pi
	lat = (2*math.Atan(math.Exp(y/earthRadius)) - math.Pi/2) * 180 / math.Pi
	return lon, lat
}

// LinesToMercator projects every vertex of the given lon/lat line strings.
func LinesToMercator(lines []*geom.LineString) []*geom.LineString {
	out := make([]*geom.LineString, 0, len(lines))
	for _, line := range lines {
		src := line.FlatCoords()
		flat := make([]float64, len(src))
		for i := 0; i+1 < len(src); i += 2 {
			flat[i], flat[i+1] = ToMercator(src[i], src[i+1])
		}
		out = append(out, geom.NewLineStringFlat(geom.XY, flat))
	}
	return out
}

// TransectsToLonLat projects transect endpoints from EPSG:3857 back to
// lon/lat. Labels and indexes carry over unchanged.
func TransectsToLonLat(transects []model.Transect) []model.Transect {
	out := make([]model.Transect, len(transects))
	for i, tr := range transects {
		sx, sy := ToLonLat(tr.Start[0], tr.Start[1])
		ex, ey := ToLonLat(tr.End[0], tr.End[1])
		out[i] = model.Transect{
			Label: tr.Label,
			Index: tr.Index,
			Start: geom.Coord{sx, sy},
			End:   geom.Coord{ex, ey},
		}
	}
	return out
}
