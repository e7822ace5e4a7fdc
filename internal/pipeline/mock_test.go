package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/hartis-org/cvi-workflow/internal/geocode"
	"github.com/hartis-org/cvi-workflow/internal/model"
)

// --- Nominatim mock ---

type mockGeocoder struct {
	mock.Mock
}

func (m *mockGeocoder) Search(ctx context.Context, query string) ([]geocode.Place, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]geocode.Place), args.Error(1)
}

// --- Overpass mock ---

type mockCoastliner struct {
	mock.Mock
}

func (m *mockCoastliner) Coastline(ctx context.Context, box model.BBox) ([]*geom.LineString, error) {
	args := m.Called(ctx, box)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*geom.LineString), args.Error(1)
}

// --- Erosion WFS mock ---

type mockErosionClient struct {
	mock.Mock
}

func (m *mockErosionClient) Segments(ctx context.Context, box model.BBox) (*geojson.FeatureCollection, error) {
	args := m.Called(ctx, box)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*geojson.FeatureCollection), args.Error(1)
}
