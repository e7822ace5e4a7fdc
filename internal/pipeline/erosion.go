package pipeline

import (
	"context"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hartis-org/cvi-workflow/internal/classify"
	"github.com/hartis-org/cvi-workflow/internal/erosion"
	"github.com/hartis-org/cvi-workflow/internal/feature"
)

// AttachErosion fetches shoreline erosion segments covering the transect
// extent, assigns each transect the highest intersecting class, rescales it
// to the CVI ranks, and writes transects_with_erosion.geojson. When the WFS
// fails or returns no segments at all, synthetic classes stand in (unless
// the fallback is disabled); transects that simply intersect no segment
// keep a null value and classify as no data.
func (p *Pipeline) AttachErosion(ctx context.Context, dir string) error {
	fc, err := feature.ReadCollection(filepath.Join(dir, TransectsFile))
	if err != nil {
		return err
	}
	transects, err := feature.Transects(fc)
	if err != nil {
		return err
	}
	box, err := feature.CollectionBounds(fc)
	if err != nil {
		return err
	}
	table, err := p.thresholds.Table("erosion")
	if err != nil {
		return err
	}

	log := zap.L().With(zap.String("component", "erosion"))

	var values map[string]int
	segments, err := p.erosion.Segments(ctx, box)
	if err != nil || len(segments.Features) == 0 {
		if !p.cfg.Erosion.SyntheticFallback {
			if err != nil {
				return eris.Wrap(err, "pipeline: erosion segments")
			}
			return eris.New("pipeline: WFS returned no erosion segments")
		}
		if err != nil {
			log.Warn("erosion: WFS request failed", zap.Error(err))
		}
		values = erosion.Synthetic(transects, nil)
	} else {
		log.Info("erosion: received segments", zap.Int("features", len(segments.Features)))
		values = erosion.MaxIntersecting(transects, segments)
	}

	props := make(map[string]map[string]any, len(transects))
	for _, tr := range transects {
		rec := map[string]any{
			"erosion_value": nil,
			"erosion_score": nil,
		}
		var score *float64
		if class, ok := values[tr.Label]; ok {
			rec["erosion_value"] = class
			if rescaled, ok := erosion.Rescale[class]; ok {
				s := float64(rescaled)
				score = &s
				rec["erosion_score"] = rescaled
			}
		}
		res := classify.ClassifyExact(score, table)
		rec["erosion_label"] = res.Label
		rec["erosion_color"] = res.Color
		props[tr.Label] = rec
	}

	matched, _ := feature.AttachProperties(fc, props)
	if err := feature.WriteCollection(filepath.Join(dir, DimensionFile("erosion")), fc); err != nil {
		return err
	}

	log.Info("erosion: attached",
		zap.Int("transects", matched),
		zap.Int("classified", len(values)),
	)
	return nil
}
