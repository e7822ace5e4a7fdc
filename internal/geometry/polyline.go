// Package geometry implements the planar line operations behind the
// pipeline: coastline stitching, arc-length resampling, perpendicular
// transect construction, and segment intersection tests. All functions
// operate on projected coordinates; callers are responsible for
// reprojection.
package geometry

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Polyline is an open line with precomputed cumulative arc lengths, which
// makes point-at-distance queries cheap for repeated sampling.
type Polyline struct {
	coords []geom.Coord
	cum    []float64
}

// NewPolyline builds a Polyline from a coordinate sequence. A single point
// is allowed and has zero length.
func NewPolyline(coords []geom.Coord) (*Polyline, error) {
	if len(coords) == 0 {
		return nil, eris.New("geometry: polyline needs at least one coordinate")
	}

	cum := make([]float64, len(coords))
	for i := 1; i < len(coords); i++ {
		cum[i] = cum[i-1] + dist(coords[i-1], coords[i])
	}
	return &Polyline{coords: coords, cum: cum}, nil
}

// Length returns the total arc length.
func (p *Polyline) Length() float64 {
	return p.cum[len(p.cum)-1]
}

// NumCoords returns the number of vertices.
func (p *Polyline) NumCoords() int {
	return len(p.coords)
}

// Coords returns the vertex sequence. The slice is shared, not copied.
func (p *Polyline) Coords() []geom.Coord {
	return p.coords
}

// PointAt returns the point at arc-length distance d from the start.
// Distances outside [0, Length] clamp to the endpoints.
func (p *Polyline) PointAt(d float64) geom.Coord {
	if d <= 0 {
		return p.coords[0]
	}
	last := len(p.cum) - 1
	if d >= p.cum[last] {
		return p.coords[last]
	}

	// Find the first vertex at or beyond d.
	lo, hi := 0, last
	for lo < hi {
		mid := (lo + hi) / 2
		if p.cum[mid] < d {
			lo = mid + 1
		} else {
			hi = mid
		}
	}

	segLen := p.cum[lo] - p.cum[lo-1]
	if segLen == 0 {
		return p.coords[lo]
	}
	t := (d - p.cum[lo-1]) / segLen
	a, b := p.coords[lo-1], p.coords[lo]
	return geom.Coord{a[0] + t*(b[0]-a[0]), a[1] + t*(b[1]-a[1])}
}

// Resample returns a new polyline of steps+1 points spaced evenly along the
// first length units of p. With steps == 0 the result is the single start
// point. Length beyond p's extent clamps to the final vertex.
func (p *Polyline) Resample(length float64, steps int) *Polyline {
	if steps < 0 {
		steps = 0
	}
	coords := make([]geom.Coord, 0, steps+1)
	for i := 0; i <= steps; i++ {
		var d float64
		if steps > 0 {
			d = length * float64(i) / float64(steps)
		}
		coords = append(coords, p.PointAt(d))
	}

	out, _ := NewPolyline(coords)
	return out
}

// LineString converts the polyline to a go-geom LineString in XY layout.
func (p *Polyline) LineString() *geom.LineString {
	flat := make([]float64, 0, len(p.coords)*2)
	for _, c := range p.coords {
		flat = append(flat, c[0], c[1])
	}
	return geom.NewLineStringFlat(geom.XY, flat)
}

func dist(a, b geom.Coord) float64 {
	return math.Hypot(b[0]-a[0], b[1]-a[1])
}
