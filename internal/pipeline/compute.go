package pipeline

import (
	"context"
	"path/filepath"

	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/hartis-org/cvi-workflow/internal/cvi"
	"github.com/hartis-org/cvi-workflow/internal/feature"
	"github.com/hartis-org/cvi-workflow/internal/model"
)

// ComputeResult summarizes the composite step.
type ComputeResult struct {
	Transects int
	Scored    int
	MeanCVI   *float64
}

// ComputeCVI merges the per-dimension scores onto the transect set, computes
// the composite index, and writes transects_with_cvi_equal.geojson. A
// missing dimension artifact contributes no scores rather than failing the
// run, so partial runs still produce a classified output.
func (p *Pipeline) ComputeCVI(ctx context.Context, dir string) (*ComputeResult, error) {
	fc, err := feature.ReadCollection(filepath.Join(dir, TransectsFile))
	if err != nil {
		return nil, err
	}
	transects, err := feature.Transects(fc)
	if err != nil {
		return nil, err
	}

	log := zap.L().With(zap.String("component", "compute"))

	records := make([]model.ScoreRecord, len(transects))
	index := make(map[string]*model.ScoreRecord, len(transects))
	for i, tr := range transects {
		records[i] = model.ScoreRecord{Label: tr.Label}
		index[tr.Label] = &records[i]
	}

	for _, dim := range cvi.DefaultDimensions {
		dimFC, readErr := feature.ReadCollection(filepath.Join(dir, DimensionFile(dim)))
		if readErr != nil {
			log.Warn("compute: dimension artifact unavailable, treating as no data",
				zap.String("dimension", dim),
				zap.Error(readErr),
			)
			continue
		}
		for label, v := range feature.FloatsByLabel(dimFC, dim+"_score") {
			rec, ok := index[label]
			if !ok {
				log.Debug("compute: score for unknown label ignored",
					zap.String("dimension", dim),
					zap.String("label", label),
				)
				continue
			}
			rec.SetScore(dim, v)
		}
	}

	table, err := p.thresholds.CompositeTable()
	if err != nil {
		return nil, err
	}
	composites := cvi.Compute(records, cvi.DefaultDimensions, table)

	// Rebuild the collection from scratch so the output carries exactly the
	// merged score columns, not the sampling properties.
	out := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(fc.Features))}
	for i, f := range fc.Features {
		out.Features = append(out.Features, &geojson.Feature{
			Geometry:   f.Geometry,
			Properties: map[string]any{"label": transects[i].Label},
		})
	}

	props := make(map[string]map[string]any, len(composites))
	var sum float64
	scored := 0
	for i, c := range composites {
		rec := map[string]any{
			"CVI_equal":       nil,
			"CVI_equal_norm":  nil,
			"CVI_equal_class": nil,
			"CVI_equal_label": c.RankLabel,
			"CVI_equal_color": c.Color,
		}
		for _, dim := range cvi.DefaultDimensions {
			if v, ok := records[i].Score(dim); ok {
				rec[dim+"_score"] = v
			} else {
				rec[dim+"_score"] = nil
			}
		}
		if c.Raw != nil {
			rec["CVI_equal"] = *c.Raw
			sum += *c.Raw
			scored++
		}
		if c.Normalized != nil {
			rec["CVI_equal_norm"] = *c.Normalized
		}
		if c.Rank != nil {
			rec["CVI_equal_class"] = *c.Rank
		}
		props[c.Label] = rec
	}
	feature.AttachProperties(out, props)

	if err := feature.WriteCollection(filepath.Join(dir, CVIFile), out); err != nil {
		return nil, err
	}

	var mean *float64
	if scored > 0 {
		m := sum / float64(scored)
		mean = &m
	}
	log.Info("compute: composite index written",
		zap.Int("transects", len(composites)),
		zap.Int("scored", scored),
	)
	return &ComputeResult{Transects: len(composites), Scored: scored, MeanCVI: mean}, nil
}
