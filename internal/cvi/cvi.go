// Package cvi computes the composite coastal vulnerability index from
// per-dimension scores and classifies the result.
package cvi

import (
	"math"

	"github.com/hartis-org/cvi-workflow/internal/classify"
	"github.com/hartis-org/cvi-workflow/internal/model"
)

// DefaultDimensions lists the vulnerability dimensions that feed the
// composite index, in output order.
var DefaultDimensions = []string{"land_cover", "slope", "erosion", "elevation"}

// Compute derives the composite index for each record. For a record the raw
// index is sqrt(product / count) over the dimension scores present; records
// with no scores at all get a nil raw value. Normalization is min-max over
// the raw values in this batch, with a degenerate batch (all raws equal)
// normalizing to zero. Classification applies the table to the raw value,
// not the normalized one.
//
// The returned slice is parallel to records.
func Compute(records []model.ScoreRecord, dims []string, table classify.Table) []model.CompositeRecord {
	if len(dims) == 0 {
		dims = DefaultDimensions
	}

	out := make([]model.CompositeRecord, len(records))

	rawMin := math.Inf(1)
	rawMax := math.Inf(-1)
	for i, rec := range records {
		out[i].Label = rec.Label

		product := 1.0
		count := 0
		for _, dim := range dims {
			v, ok := rec.Score(dim)
			if !ok {
				continue
			}
			product *= v
			count++
		}
		if count == 0 {
			continue
		}

		raw := math.Sqrt(product / float64(count))
		out[i].Raw = &raw
		rawMin = math.Min(rawMin, raw)
		rawMax = math.Max(rawMax, raw)
	}

	span := rawMax - rawMin
	for i := range out {
		res := classify.Classify(out[i].Raw, table)
		out[i].Rank = res.Rank
		out[i].RankLabel = res.Label
		out[i].Color = res.Color

		if out[i].Raw == nil {
			continue
		}
		norm := 0.0
		if span > 0 {
			norm = (*out[i].Raw - rawMin) / span
		}
		out[i].Normalized = &norm
	}

	return out
}
