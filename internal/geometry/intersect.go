package geometry

import "github.com/twpayne/go-geom"

// SegmentsIntersect reports whether the closed segments p1-p2 and p3-p4
// intersect, including collinear overlap and shared endpoints.
func SegmentsIntersect(p1, p2, p3, p4 geom.Coord) bool {
	d1 := orientation(p3, p4, p1)
	d2 := orientation(p3, p4, p2)
	d3 := orientation(p1, p2, p3)
	d4 := orientation(p1, p2, p4)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}

	switch {
	case d1 == 0 && onSegment(p3, p4, p1):
		return true
	case d2 == 0 && onSegment(p3, p4, p2):
		return true
	case d3 == 0 && onSegment(p1, p2, p3):
		return true
	case d4 == 0 && onSegment(p1, p2, p4):
		return true
	}
	return false
}

// orientation returns the signed cross product of (b-a) and (c-a): positive
// when c lies left of a-b, negative when right, zero when collinear.
func orientation(a, b, c geom.Coord) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

// onSegment reports whether collinear point p lies within segment a-b's
// bounding box.
func onSegment(a, b, p geom.Coord) bool {
	return min(a[0], b[0]) <= p[0] && p[0] <= max(a[0], b[0]) &&
		min(a[1], b[1]) <= p[1] && p[1] <= max(a[1], b[1])
}
