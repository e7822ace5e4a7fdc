package geometry

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// ErrEmptyInput is returned when stitching is asked to merge zero usable
// segments.
var ErrEmptyInput = eris.New("geometry: no segments to stitch")

// stitchWarnThreshold is the segment count above which stitching logs a
// warning, since the greedy merge is quadratic in the number of segments.
const stitchWarnThreshold = 5000

// Stitch merges disjoint line segments into one continuous polyline using
// greedy nearest-neighbor chaining. The chain is seeded with the segment
// whose first vertex lies furthest west, then repeatedly extended with the
// remaining segment whose nearer endpoint is closest to the chain's tail.
// A segment closer by its far end is reversed before appending, and the
// appended segment's first vertex is dropped so shared endpoints are not
// duplicated.
func Stitch(segments []*geom.LineString) (*Polyline, error) {
	pool := make([][]geom.Coord, 0, len(segments))
	for _, ls := range segments {
		if ls == nil || ls.NumCoords() == 0 {
			continue
		}
		pool = append(pool, ls.Coords())
	}
	if len(pool) == 0 {
		return nil, ErrEmptyInput
	}
	if len(pool) > stitchWarnThreshold {
		zap.L().Warn("stitching a large segment set; merge is quadratic",
			zap.Int("segments", len(pool)))
	}

	// Seed with the westernmost starting vertex.
	seedIdx := 0
	for i, coords := range pool {
		if coords[0][0] < pool[seedIdx][0][0] {
			seedIdx = i
		}
	}
	chain := append([]geom.Coord(nil), pool[seedIdx]...)
	pool = append(pool[:seedIdx], pool[seedIdx+1:]...)

	for len(pool) > 0 {
		tail := chain[len(chain)-1]

		bestIdx := 0
		bestDist := -1.0
		bestFlip := false
		for i, coords := range pool {
			dStart := dist(tail, coords[0])
			dEnd := dist(tail, coords[len(coords)-1])

			d, flip := dStart, false
			if dEnd < dStart {
				d, flip = dEnd, true
			}
			if bestDist < 0 || d < bestDist {
				bestIdx, bestDist, bestFlip = i, d, flip
			}
		}

		next := pool[bestIdx]
		if bestFlip {
			next = reverseCoords(next)
		}
		// Drop the shared vertex so adjacent segments do not double it.
		chain = append(chain, next[1:]...)
		pool = append(pool[:bestIdx], pool[bestIdx+1:]...)
	}

	return NewPolyline(chain)
}

func reverseCoords(coords []geom.Coord) []geom.Coord {
	out := make([]geom.Coord, len(coords))
	for i, c := range coords {
		out[len(coords)-1-i] = c
	}
	return out
}
