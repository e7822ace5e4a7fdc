package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/twpayne/go-geom"
)

func TestSegmentsIntersect(t *testing.T) {
	tests := []struct {
		name           string
		p1, p2, p3, p4 geom.Coord
		want           bool
	}{
		{
			name: "proper crossing",
			p1:   geom.Coord{0, 0}, p2: geom.Coord{10, 10},
			p3: geom.Coord{0, 10}, p4: geom.Coord{10, 0},
			want: true,
		},
		{
			name: "parallel apart",
			p1:   geom.Coord{0, 0}, p2: geom.Coord{10, 0},
			p3: geom.Coord{0, 5}, p4: geom.Coord{10, 5},
			want: false,
		},
		{
			name: "shared endpoint",
			p1:   geom.Coord{0, 0}, p2: geom.Coord{5, 5},
			p3: geom.Coord{5, 5}, p4: geom.Coord{10, 0},
			want: true,
		},
		{
			name: "T junction",
			p1:   geom.Coord{0, 0}, p2: geom.Coord{10, 0},
			p3: geom.Coord{5, -5}, p4: geom.Coord{5, 0},
			want: true,
		},
		{
			name: "collinear overlapping",
			p1:   geom.Coord{0, 0}, p2: geom.Coord{10, 0},
			p3: geom.Coord{5, 0}, p4: geom.Coord{15, 0},
			want: true,
		},
		{
			name: "collinear disjoint",
			p1:   geom.Coord{0, 0}, p2: geom.Coord{5, 0},
			p3: geom.Coord{6, 0}, p4: geom.Coord{10, 0},
			want: false,
		},
		{
			name: "near miss",
			p1:   geom.Coord{0, 0}, p2: geom.Coord{10, 0},
			p3: geom.Coord{11, -5}, p4: geom.Coord{11, 5},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SegmentsIntersect(tt.p1, tt.p2, tt.p3, tt.p4))
			// Intersection is symmetric in the two segments.
			assert.Equal(t, tt.want, SegmentsIntersect(tt.p3, tt.p4, tt.p1, tt.p2))
		})
	}
}
