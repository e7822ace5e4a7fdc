// Package geocode resolves area names to bounding boxes via Nominatim and
// fetches raw coastline geometry from the Overpass API. Both are public OSM
// services that require a descriptive User-Agent and polite request rates.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/hartis-org/cvi-workflow/internal/model"
)

// Client defines the geocoding operations.
type Client interface {
	// Search resolves a free-form query to candidate places, best first.
	Search(ctx context.Context, query string) ([]Place, error)
}

// Place is one Nominatim search result. BoundingBox arrives as strings in
// [min_lat, max_lat, min_lon, max_lon] order.
type Place struct {
	DisplayName string   `json:"display_name"`
	BoundingBox []string `json:"boundingbox"`
}

// BBox parses the place's bounding box.
func (p Place) BBox() (model.BBox, error) {
	if len(p.BoundingBox) != 4 {
		return model.BBox{}, eris.Errorf("geocode: bounding box has %d values, want 4", len(p.BoundingBox))
	}
	vals := make([]float64, 4)
	for i, s := range p.BoundingBox {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return model.BBox{}, eris.Wrapf(err, "geocode: parse bounding box value %q", s)
		}
		vals[i] = v
	}
	return model.BBox{MinLat: vals[0], MaxLat: vals[1], MinLon: vals[2], MaxLon: vals[3]}, nil
}

// Option configures the Nominatim client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the default one-request-per-second limit.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

type httpClient struct {
	baseURL   string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
}

// NewClient creates a Nominatim geocoding client. The userAgent identifies
// this application to the OSM operators and must not be empty in production.
func NewClient(userAgent string, opts ...Option) Client {
	c := &httpClient{
		baseURL:   "https://nominatim.openstreetmap.org",
		userAgent: userAgent,
		limiter:   rate.NewLimiter(1, 1),
		http: &http.Client{
			Timeout: 30 * time.Second,
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

func (c *httpClient) Search(ctx context.Context, query string) ([]Place, error) {
	reqURL := fmt.Sprintf("%s/search?q=%s&format=json&limit=1", c.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: create request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Language", "en")

	body, statusCode, err := retryDo(ctx, c.http, c.limiter, req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: request failed")
	}
	if statusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: unexpected status %d: %s", statusCode, string(body))
	}

	var places []Place
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, eris.Wrap(err, "geocode: unmarshal response")
	}
	return places, nil
}

// retryableStatusCode returns true if the HTTP status code should trigger a retry.
func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

// retryDo executes an HTTP request with exponential backoff retries on
// transient failures (429, 500, 502, 503), waiting on the limiter before
// each attempt. Returns the response body and status code on success, or
// the last error after exhausting retries.
func retryDo(ctx context.Context, hc *http.Client, limiter *rate.Limiter, req *http.Request) ([]byte, int, error) {
	const maxAttempts = 3
	backoff := 1 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return nil, 0, eris.Wrap(err, "geocode: rate limiter wait")
			}
		}

		retryReq := req.Clone(ctx)
		if req.GetBody != nil {
			// POST bodies are consumed per attempt and must be reopened.
			rc, err := req.GetBody()
			if err != nil {
				return nil, 0, eris.Wrap(err, "geocode: reopen request body")
			}
			retryReq.Body = rc
		}

		resp, err := hc.Do(retryReq)
		if err != nil {
			lastErr = err
			if attempt < maxAttempts {
				select {
				case <-ctx.Done():
					return nil, 0, ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= 2
				continue
			}
			return nil, 0, lastErr
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, resp.StatusCode, eris.Wrap(readErr, "geocode: read response body")
		}

		if retryableStatusCode(resp.StatusCode) && attempt < maxAttempts {
			lastErr = eris.Errorf("geocode: status %d: %s", resp.StatusCode, string(body))
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}

		return body, resp.StatusCode, nil
	}

	return nil, 0, lastErr
}
