// Package classify implements the ordered threshold rule tables that map
// numeric vulnerability values to ranks, labels, and display colors.
package classify

import "math"

// Sentinel classification for absent values and values outside every bin.
const (
	NoDataLabel = "No Data"
	NoDataColor = "gray"
)

// Result is the outcome of classifying a single value. Rank is nil for the
// No Data sentinel.
type Result struct {
	Rank  *int   `json:"rank"`
	Label string `json:"label"`
	Color string `json:"color"`
}

// NoData returns the sentinel result for values that cannot be classified.
func NoData() Result {
	return Result{Label: NoDataLabel, Color: NoDataColor}
}

// Bin maps the half-open interval [Min, Max) to an integer rank. Unbounded
// ends are represented as -Inf/+Inf, never omitted.
type Bin struct {
	Rank  int     `json:"rank"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Label string  `json:"label"`
	Color string  `json:"color"`
}

// Table is an ordered rule set sorted ascending by rank. Bins are expected
// to be non-overlapping; the first match wins.
type Table []Bin

// Classify returns the first bin whose interval contains value, lower bound
// inclusive and upper bound exclusive. Absent and NaN values classify as
// No Data, as do values outside every bin.
func Classify(value *float64, table Table) Result {
	if value == nil || math.IsNaN(*value) {
		return NoData()
	}
	for _, b := range table {
		if *value >= b.Min && *value < b.Max {
			rank := b.Rank
			return Result{Rank: &rank, Label: b.Label, Color: b.Color}
		}
	}
	return NoData()
}

// ClassifyExact matches value against bin ranks by equality instead of
// interval containment. It serves dimensions whose values are already
// discrete ranks, such as the erosion scale rescaled to {1, 3, 5}.
func ClassifyExact(value *float64, table Table) Result {
	if value == nil || math.IsNaN(*value) {
		return NoData()
	}
	for _, b := range table {
		if *value == float64(b.Rank) {
			rank := b.Rank
			return Result{Rank: &rank, Label: b.Label, Color: b.Color}
		}
	}
	return NoData()
}
