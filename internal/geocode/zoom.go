package geocode

import "github.com/hartis-org/cvi-workflow/internal/model"

// ZoomLevel picks the web-map zoom at which the whole bounding box fits a
// single view, keyed off the larger of the box's two extents in degrees.
func ZoomLevel(box model.BBox) int {
	span := box.Span()
	switch {
	case span > 10:
		return 6
	case span > 5:
		return 7
	case span > 2:
		return 8
	case span > 1:
		return 9
	case span > 0.5:
		return 10
	case span > 0.25:
		return 11
	case span > 0.1:
		return 12
	default:
		return 13
	}
}
