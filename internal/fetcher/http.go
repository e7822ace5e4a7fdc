package fetcher

import (
	"context"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	HostLimits map[string]*HostLimit
}

// HostLimit is the request budget for one host. A pinned limit never moves:
// the OSM services publish a hard usage policy and block clients that creep
// above it. An unpinned limit starts at its configured rate and self-tunes,
// climbing while the host answers cleanly and halving when it throttles.
type HostLimit struct {
	mu     sync.Mutex
	lim    *rate.Limiter
	pinned bool
	start  rate.Limit
	cur    rate.Limit
}

// PinnedLimit admits rps requests per second, always.
func PinnedLimit(rps float64, burst int) *HostLimit {
	h := TunedLimit(rps, burst)
	h.pinned = true
	return h
}

// TunedLimit starts at rps and self-adjusts between a quarter and double
// that rate.
func TunedLimit(rps float64, burst int) *HostLimit {
	return &HostLimit{
		lim:   rate.NewLimiter(rate.Limit(rps), burst),
		start: rate.Limit(rps),
		cur:   rate.Limit(rps),
	}
}

// Wait blocks until the limit admits one request.
func (h *HostLimit) Wait(ctx context.Context) error {
	return h.lim.Wait(ctx)
}

// Rate returns the currently admitted rate.
func (h *HostLimit) Rate() rate.Limit {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cur
}

// loosen nudges an unpinned limit up 20%, capped at twice the start rate.
func (h *HostLimit) loosen() {
	if h.pinned {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	next := h.cur * 1.2
	if ceil := h.start * 2; next > ceil {
		next = ceil
	}
	h.cur = next
	h.lim.SetLimit(next)
}

// tighten halves an unpinned limit after a throttle response, flooring at a
// quarter of the start rate.
func (h *HostLimit) tighten() {
	if h.pinned {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	next := h.cur / 2
	if floor := h.start / 4; next < floor {
		next = floor
	}
	h.cur = next
	h.lim.SetLimit(next)
	zap.L().Warn("fetcher: host throttling, rate lowered",
		zap.Float64("rps", float64(next)),
	)
}

// DefaultHostLimits covers every host the pipeline talks to out of the box.
// The OSM services enforce one request per second, so their limits are
// pinned; the archive mirrors tolerate more and self-tune.
func DefaultHostLimits() map[string]*HostLimit {
	return map[string]*HostLimit{
		"nominatim.openstreetmap.org":        PinnedLimit(1, 1),
		"overpass-api.de":                    PinnedLimit(1, 1),
		"coastalhazardwheel.avi.deltares.nl": TunedLimit(2, 2),
		"www2.census.gov":                    TunedLimit(5, 5),
		"coast.noaa.gov":                     TunedLimit(5, 5),
	}
}

// HTTPFetcher downloads over HTTP with per-host rate limits and retries.
// Coastline archives run to hundreds of megabytes, so the default timeout is
// sized for transfers rather than API calls.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions

	mu     sync.Mutex
	limits map[string]*HostLimit
}

// NewHTTPFetcher creates an HTTPFetcher, filling unset options with
// pipeline-appropriate defaults.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 120 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "cvi-workflow/1.0"
	}
	limits := opts.HostLimits
	if limits == nil {
		limits = DefaultHostLimits()
	}

	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				MaxConnsPerHost:     20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:   opts,
		limits: limits,
	}
}

// limitFor returns the limit for a URL's host, lazily creating a self-tuning
// one for hosts not configured up front.
func (f *HTTPFetcher) limitFor(u *url.URL) *HostLimit {
	f.mu.Lock()
	defer f.mu.Unlock()
	if h, ok := f.limits[u.Host]; ok {
		return h
	}
	h := TunedLimit(10, 10)
	f.limits[u.Host] = h
	return h
}

// retryAfter reads a throttle response's Retry-After header, seconds form
// only. Zero means absent or unparseable.
func retryAfter(resp *http.Response) time.Duration {
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// backoffDelay is exponential from one second with jitter, capped at 30s.
// A server-requested wait wins when it is longer.
func backoffDelay(attempt int, serverWait time.Duration) time.Duration {
	d := time.Duration(float64(time.Second) * math.Pow(2, float64(attempt)))
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	d += time.Duration(rand.Int64N(int64(d) / 2))
	if serverWait > d {
		d = serverWait
	}
	return d
}

func (f *HTTPFetcher) sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "fetcher: backoff interrupted")
	case <-t.C:
		return nil
	}
}

// do runs the request with rate limiting and retries. Connection errors,
// throttle responses, and 5xx answers are retried; anything else is returned
// to the caller as-is.
func (f *HTTPFetcher) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	limit := f.limitFor(req.URL)

	var lastErr error
	for attempt := 0; attempt < f.opts.MaxRetries; attempt++ {
		if err := limit.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetcher: rate limit wait")
		}

		resp, err := f.client.Do(req.Clone(ctx))
		if err != nil {
			lastErr = err
			zap.L().Warn("fetcher: request failed",
				zap.String("url", req.URL.String()),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			if err := f.sleep(ctx, backoffDelay(attempt, 0)); err != nil {
				return nil, err
			}
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests ||
			resp.StatusCode == http.StatusServiceUnavailable:
			// Overpass answers 429 when a client holds too many slots and
			// 503 when the whole instance is loaded. Both mean back off.
			wait := retryAfter(resp)
			_ = resp.Body.Close()
			limit.tighten()
			lastErr = eris.Errorf("fetcher: %d from %s", resp.StatusCode, req.URL.Host)
			zap.L().Warn("fetcher: throttled",
				zap.String("host", req.URL.Host),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1),
			)
			if err := f.sleep(ctx, backoffDelay(attempt, wait)); err != nil {
				return nil, err
			}

		case resp.StatusCode >= 500:
			_ = resp.Body.Close()
			lastErr = eris.Errorf("fetcher: %d from %s", resp.StatusCode, req.URL.Host)
			zap.L().Warn("fetcher: server error",
				zap.String("url", req.URL.String()),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1),
			)
			if err := f.sleep(ctx, backoffDelay(attempt, 0)); err != nil {
				return nil, err
			}

		default:
			// Any real answer, even an error status, is evidence the host
			// is keeping up.
			limit.loosen()
			return resp, nil
		}
	}

	return nil, eris.Wrap(lastErr, "fetcher: retries exhausted")
}

// Download fetches the URL and returns the response body.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: build request for %s", rawURL)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.do(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, eris.Errorf("fetcher: unexpected status %d from %s", resp.StatusCode, rawURL)
	}
	return resp.Body, nil
}

// DownloadToFile fetches the URL into path. Returns bytes written.
func (f *HTTPFetcher) DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error) {
	body, err := f.Download(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck

	return saveTo(path, body)
}
