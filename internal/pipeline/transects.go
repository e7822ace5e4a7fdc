package pipeline

import (
	"context"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hartis-org/cvi-workflow/internal/coastline"
	"github.com/hartis-org/cvi-workflow/internal/feature"
	"github.com/hartis-org/cvi-workflow/internal/geometry"
)

// TransectsResult summarizes transect generation.
type TransectsResult struct {
	Count       int
	ProcessedKM float64
}

// GenerateTransects stitches the extracted coastline into one polyline,
// samples perpendicular transects along it in the spherical-Mercator frame,
// and writes transects.geojson back in lon/lat. Sampling distances come from
// the run configuration and are interpreted in meters.
func (p *Pipeline) GenerateTransects(ctx context.Context, dir string) (*TransectsResult, error) {
	lines, err := coastline.Load(filepath.Join(dir, CoastlineFile))
	if err != nil {
		return nil, err
	}

	merged, err := geometry.Stitch(coastline.LinesToMercator(lines))
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: stitch coastline")
	}

	transects, usable, err := geometry.SampleTransects(merged, geometry.SampleOptions{
		Spacing:        p.cfg.Sampling.SpacingM,
		TransectLength: p.cfg.Sampling.TransectLengthM,
		MaxCoastLength: p.cfg.Sampling.MaxCoastM,
	})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: sample transects")
	}
	if len(transects) == 0 {
		return nil, eris.New("pipeline: no transects generated")
	}

	processedKM := usable / 1000
	fc := feature.TransectCollection(coastline.TransectsToLonLat(transects), processedKM)
	if err := feature.WriteCollection(filepath.Join(dir, TransectsFile), fc); err != nil {
		return nil, err
	}

	zap.L().Info("transects: generated",
		zap.Int("count", len(transects)),
		zap.Float64("processed_km", processedKM),
		zap.Float64("total_km", merged.Length()/1000),
	)
	return &TransectsResult{Count: len(transects), ProcessedKM: processedKM}, nil
}
