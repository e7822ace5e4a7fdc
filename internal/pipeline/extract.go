package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/hartis-org/cvi-workflow/internal/aoi"
	"github.com/hartis-org/cvi-workflow/internal/coastline"
	"github.com/hartis-org/cvi-workflow/internal/feature"
	"github.com/hartis-org/cvi-workflow/internal/fetcher"
	"github.com/hartis-org/cvi-workflow/internal/geocode"
	"github.com/hartis-org/cvi-workflow/internal/model"
)

// ExtractResult summarizes the coastline extraction step.
type ExtractResult struct {
	// Query is the geocoding query that finally resolved, which may be one
	// of the area's fallback queries.
	Query    string
	BBox     model.BBox
	Zoom     int
	UUID     string
	Segments int
}

// aoiMetadata is the run summary written next to the coastline artifact.
type aoiMetadata struct {
	ProcessType string     `json:"process_type"`
	Area        string     `json:"area"`
	BoundingBox model.BBox `json:"bounding_box"`
	UUID        string     `json:"uuid"`
	Zoom        int        `json:"zoom"`
}

// ExtractCoastline geocodes the area, fetches its coastline ways, and writes
// coastline.geojson plus an aoi.json summary into dir. The primary query and
// then each fallback query are tried until one yields both a bounding box
// and at least one coastline way; query-level failures are logged and the
// next query tried, so only total exhaustion is an error.
func (p *Pipeline) ExtractCoastline(ctx context.Context, entry aoi.Entry, dir string) (*ExtractResult, error) {
	log := zap.L().With(
		zap.String("component", "extract"),
		zap.String("area", entry.Query()),
	)

	queries := append([]string{entry.Query()}, entry.FallbackQueries()...)

	var lines []*geom.LineString
	var box model.BBox
	var resolved string
	for _, q := range queries {
		places, err := p.nominatim.Search(ctx, q)
		if err != nil {
			log.Warn("extract: geocode query failed", zap.String("query", q), zap.Error(err))
			continue
		}
		if len(places) == 0 {
			log.Info("extract: no geocode results", zap.String("query", q))
			continue
		}

		b, err := places[0].BBox()
		if err != nil {
			log.Warn("extract: unusable bounding box", zap.String("query", q), zap.Error(err))
			continue
		}

		ways, err := p.overpass.Coastline(ctx, b)
		if err != nil {
			log.Warn("extract: overpass query failed", zap.String("query", q), zap.Error(err))
			continue
		}
		if len(ways) == 0 {
			log.Info("extract: no coastline in bounding box", zap.String("query", q))
			continue
		}

		lines, box, resolved = ways, b, q
		break
	}
	if len(lines) == 0 {
		return nil, eris.Errorf("pipeline: no coastline found for %s", entry.Query())
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "pipeline: create output dir %s", dir)
	}
	if err := feature.WriteCollection(filepath.Join(dir, CoastlineFile), feature.LineCollection(lines)); err != nil {
		return nil, err
	}

	meta := aoiMetadata{
		ProcessType: "CVI calculation",
		Area:        resolved,
		BoundingBox: box,
		UUID:        uuid.NewString(),
		Zoom:        geocode.ZoomLevel(box),
	}
	if err := writeJSON(filepath.Join(dir, AOIFile), meta); err != nil {
		return nil, err
	}

	log.Info("extract: coastline saved",
		zap.String("query", resolved),
		zap.Int("segments", len(lines)),
		zap.Int("zoom", meta.Zoom),
	)
	return &ExtractResult{
		Query:    resolved,
		BBox:     box,
		Zoom:     meta.Zoom,
		UUID:     meta.UUID,
		Segments: len(lines),
	}, nil
}

// ImportCoastline builds the extraction artifacts from an existing coastline
// source instead of geocoding: a local GeoJSON or shapefile path, or an
// http/https/ftp URL pointing at one, optionally inside a ZIP archive.
// Downloads land under a source/ subdirectory of dir; the resulting
// coastline.geojson and aoi.json are identical in shape to what
// ExtractCoastline writes, so the downstream steps cannot tell the two
// apart.
func (p *Pipeline) ImportCoastline(ctx context.Context, source, dir string) (*ExtractResult, error) {
	log := zap.L().With(
		zap.String("component", "extract"),
		zap.String("source", source),
	)

	path := source
	if strings.Contains(source, "://") {
		var f fetcher.Fetcher
		if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
			f = fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
				UserAgent:  p.cfg.Geocode.UserAgent,
				Timeout:    time.Duration(p.cfg.Fetch.TimeoutSecs) * time.Second,
				MaxRetries: p.cfg.Fetch.MaxAttempts - 1,
			})
		}
		fetched, err := coastline.Fetch(ctx, f, source, filepath.Join(dir, "source"))
		if err != nil {
			return nil, err
		}
		path = fetched
	}

	lines, err := coastline.Load(path)
	if err != nil {
		return nil, err
	}

	fc := feature.LineCollection(lines)
	box, err := feature.CollectionBounds(fc)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "pipeline: create output dir %s", dir)
	}
	if err := feature.WriteCollection(filepath.Join(dir, CoastlineFile), fc); err != nil {
		return nil, err
	}

	area := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	meta := aoiMetadata{
		ProcessType: "CVI calculation",
		Area:        area,
		BoundingBox: box,
		UUID:        uuid.NewString(),
		Zoom:        geocode.ZoomLevel(box),
	}
	if err := writeJSON(filepath.Join(dir, AOIFile), meta); err != nil {
		return nil, err
	}

	log.Info("extract: coastline imported",
		zap.String("path", path),
		zap.Int("segments", len(lines)),
		zap.Int("zoom", meta.Zoom),
	)
	return &ExtractResult{
		Query:    area,
		BBox:     box,
		Zoom:     meta.Zoom,
		UUID:     meta.UUID,
		Segments: len(lines),
	}, nil
}

// writeJSON writes v as indented JSON, creating parent directories.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "pipeline: marshal %s", filepath.Base(path))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "pipeline: create dir for %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "pipeline: write %s", path)
	}
	return nil
}
