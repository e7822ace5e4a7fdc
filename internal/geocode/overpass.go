package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"golang.org/x/time/rate"

	"github.com/hartis-org/cvi-workflow/internal/model"
)

// CoastlineClient fetches raw coastline ways within a bounding box.
type CoastlineClient interface {
	// Coastline returns every natural=coastline way intersecting the box,
	// one open LineString per way in lon/lat order.
	Coastline(ctx context.Context, box model.BBox) ([]*geom.LineString, error)
}

// OverpassOption configures the Overpass client.
type OverpassOption func(*overpassClient)

// WithOverpassURL sets a custom endpoint (for testing).
func WithOverpassURL(url string) OverpassOption {
	return func(c *overpassClient) {
		c.baseURL = url
	}
}

// WithOverpassHTTPClient sets a custom HTTP client.
func WithOverpassHTTPClient(hc *http.Client) OverpassOption {
	return func(c *overpassClient) {
		c.http = hc
	}
}

// WithOverpassRateLimit overrides the default one-request-per-second limit.
func WithOverpassRateLimit(rps float64) OverpassOption {
	return func(c *overpassClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

type overpassClient struct {
	baseURL   string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
}

// NewOverpassClient creates an Overpass API client. Coastline queries over
// large boxes can take the interpreter a while, hence the long timeout.
func NewOverpassClient(userAgent string, opts ...OverpassOption) CoastlineClient {
	c := &overpassClient{
		baseURL:   "https://overpass-api.de/api/interpreter",
		userAgent: userAgent,
		limiter:   rate.NewLimiter(1, 1),
		http: &http.Client{
			Timeout: 180 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// overpassResponse mirrors the interpreter's JSON output. Only way elements
// with inline geometry are requested.
type overpassResponse struct {
	Elements []struct {
		Type     string `json:"type"`
		Geometry []struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		} `json:"geometry"`
	} `json:"elements"`
}

func (c *overpassClient) Coastline(ctx context.Context, box model.BBox) ([]*geom.LineString, error) {
	query := fmt.Sprintf("[out:json];\nway[\"natural\"=\"coastline\"](%f,%f,%f,%f);\nout geom;",
		box.MinLat, box.MinLon, box.MaxLat, box.MaxLon)

	form := url.Values{"data": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "geocode: create overpass request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)

	body, statusCode, err := retryDo(ctx, c.http, c.limiter, req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: overpass request failed")
	}
	if statusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: overpass unexpected status %d: %s", statusCode, string(body))
	}

	var resp overpassResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "geocode: unmarshal overpass response")
	}

	var lines []*geom.LineString
	for _, el := range resp.Elements {
		if el.Type != "way" || len(el.Geometry) < 2 {
			continue
		}
		flat := make([]float64, 0, len(el.Geometry)*2)
		for _, pt := range el.Geometry {
			flat = append(flat, pt.Lon, pt.Lat)
		}
		lines = append(lines, geom.NewLineStringFlat(geom.XY, flat))
	}
	return lines, nil
}
