// Package erosion scores transects against the Deltares Coastal Hazard
// Wheel erosion layer.
package erosion

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/hartis-org/cvi-workflow/internal/fetcher"
	"github.com/hartis-org/cvi-workflow/internal/model"
)

// Deltares CHW publishes global erosion segments through a GeoServer WFS.
const (
	DefaultWFSURL   = "https://coastalhazardwheel.avi.deltares.nl/geoserver/chw2-vector/ows"
	DefaultTypeName = "chw2-vector:coast_segments_erosion"
)

// Client fetches erosion segments covering a bounding box.
type Client interface {
	Segments(ctx context.Context, box model.BBox) (*geojson.FeatureCollection, error)
}

// Option configures the WFS client.
type Option func(*wfsClient)

// WithWFSURL overrides the GeoServer endpoint.
func WithWFSURL(u string) Option {
	return func(c *wfsClient) { c.baseURL = u }
}

// WithTypeName overrides the WFS feature type.
func WithTypeName(name string) Option {
	return func(c *wfsClient) { c.typeName = name }
}

// WithFetcher injects the transport, mainly for tests.
func WithFetcher(f fetcher.Fetcher) Option {
	return func(c *wfsClient) { c.fetch = f }
}

type wfsClient struct {
	fetch    fetcher.Fetcher
	baseURL  string
	typeName string
}

// NewWFSClient creates a Client against the Deltares CHW WFS.
func NewWFSClient(opts ...Option) Client {
	c := &wfsClient{
		baseURL:  DefaultWFSURL,
		typeName: DefaultTypeName,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.fetch == nil {
		c.fetch = fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			HostLimits: fetcher.DefaultHostLimits(),
		})
	}
	return c
}

func (c *wfsClient) Segments(ctx context.Context, box model.BBox) (*geojson.FeatureCollection, error) {
	params := url.Values{}
	params.Set("service", "WFS")
	params.Set("version", "1.0.0")
	params.Set("request", "GetFeature")
	params.Set("typeName", c.typeName)
	params.Set("outputFormat", "application/json")
	// WFS bbox is x,y ordered: lon before lat.
	params.Set("bbox", fmt.Sprintf("%f,%f,%f,%f,EPSG:4326",
		box.MinLon, box.MinLat, box.MaxLon, box.MaxLat))

	body, err := c.fetch.Download(ctx, c.baseURL+"?"+params.Encode())
	if err != nil {
		return nil, eris.Wrap(err, "erosion: fetch WFS segments")
	}
	defer func() { _ = body.Close() }()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, eris.Wrap(err, "erosion: read WFS response")
	}

	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "erosion: parse WFS response")
	}
	return &fc, nil
}
