package geometry

import (
	"fmt"
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/hartis-org/cvi-workflow/internal/model"
)

// SampleOptions controls transect generation. All values are in the units
// of the input line, meters when the coastline has been projected to
// spherical Mercator.
type SampleOptions struct {
	// Spacing is the along-shore distance between consecutive transects.
	Spacing float64
	// TransectLength is the full cross-shore length of each transect,
	// centered on the coastline.
	TransectLength float64
	// MaxCoastLength caps how much of the coastline is sampled, measured
	// from its start.
	MaxCoastLength float64
}

// tangentLookahead is the along-line distance used to estimate the local
// tangent direction at a sample point.
const tangentLookahead = 1.0

// SampleTransects walks the coastline at fixed arc-length intervals and
// emits a perpendicular transect at each sample point. The line is first
// truncated to MaxCoastLength and resampled to evenly spaced vertices so
// that sampling is insensitive to the source vertex density. Sample points
// whose local tangent degenerates to zero are skipped, and labels number
// the emitted transects consecutively from T1.
//
// The second return value is the coastline length actually sampled.
func SampleTransects(line *Polyline, opts SampleOptions) ([]model.Transect, float64, error) {
	if line == nil {
		return nil, 0, eris.New("geometry: nil coastline")
	}
	if opts.Spacing <= 0 {
		return nil, 0, eris.Errorf("geometry: spacing must be positive, got %g", opts.Spacing)
	}
	if opts.TransectLength <= 0 {
		return nil, 0, eris.Errorf("geometry: transect length must be positive, got %g", opts.TransectLength)
	}
	if opts.MaxCoastLength <= 0 {
		return nil, 0, eris.Errorf("geometry: max coast length must be positive, got %g", opts.MaxCoastLength)
	}

	usable := math.Min(opts.MaxCoastLength, line.Length())
	numPts := int(math.Floor(usable / opts.Spacing))
	// A coastline shorter than the spacing still gets its start transect.
	if numPts < 1 {
		numPts = 1
	}
	truncated := line.Resample(usable, numPts)

	half := opts.TransectLength / 2
	transects := make([]model.Transect, 0, numPts+1)

	for i := 0; i <= numPts; i++ {
		d := float64(i) * opts.Spacing
		if d >= truncated.Length() {
			continue
		}

		pt := truncated.PointAt(d)
		ahead := truncated.PointAt(math.Min(d+tangentLookahead, truncated.Length()))

		dx, dy := ahead[0]-pt[0], ahead[1]-pt[1]
		norm := math.Hypot(dx, dy)
		if norm == 0 {
			continue
		}
		dx, dy = dx/norm, dy/norm

		// Rotate the tangent 90 degrees counterclockwise to get the
		// cross-shore direction.
		nx, ny := -dy, dx

		transects = append(transects, model.Transect{
			Label: fmt.Sprintf("T%d", len(transects)+1),
			Index: len(transects),
			Start: geom.Coord{pt[0] - nx*half, pt[1] - ny*half},
			End:   geom.Coord{pt[0] + nx*half, pt[1] + ny*half},
		})
	}

	return transects, usable, nil
}
