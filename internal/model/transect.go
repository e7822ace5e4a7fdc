// Package model defines the domain types shared across the CVI pipeline.
package model

import (
	"github.com/twpayne/go-geom"
)

// Transect is one cross-shore sample line, perpendicular to the coastline
// at its origin point. Start and End are planar coordinates in whatever
// reference frame the sampler ran in; the label is the stable join key for
// every downstream score attachment.
type Transect struct {
	Label string     `json:"label"`
	Index int        `json:"index"`
	Start geom.Coord `json:"start"`
	End   geom.Coord `json:"end"`
}

// ScoreRecord holds the per-dimension scores attached to one transect.
// A dimension absent from Scores has no data; absence is the only missing
// value representation, never NaN or a sentinel number.
type ScoreRecord struct {
	Label  string             `json:"label"`
	Scores map[string]float64 `json:"scores"`
}

// Score returns the value for a dimension and whether it is present.
func (r ScoreRecord) Score(dim string) (float64, bool) {
	v, ok := r.Scores[dim]
	return v, ok
}

// SetScore records a dimension value, allocating the map on first use.
func (r *ScoreRecord) SetScore(dim string, v float64) {
	if r.Scores == nil {
		r.Scores = make(map[string]float64)
	}
	r.Scores[dim] = v
}

// CompositeRecord is the final per-transect result: the raw composite
// vulnerability value, its dataset-normalized form, and the classification
// of the raw value. Raw and Normalized are nil when no dimension score was
// present for the transect.
type CompositeRecord struct {
	Label      string   `json:"label"`
	Raw        *float64 `json:"raw"`
	Normalized *float64 `json:"normalized"`
	Rank       *int     `json:"rank"`
	RankLabel  string   `json:"rank_label"`
	Color      string   `json:"color"`
}
