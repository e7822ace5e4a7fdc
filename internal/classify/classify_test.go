package classify

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func testTable() Table {
	return Table{
		{Rank: 1, Min: math.Inf(-1), Max: 0.025, Label: "Very Low", Color: "#2c7bb6"},
		{Rank: 2, Min: 0.025, Max: 0.035, Label: "Low", Color: "#abd9e9"},
		{Rank: 3, Min: 0.035, Max: 0.045, Label: "Moderate", Color: "#ffffbf"},
		{Rank: 4, Min: 0.045, Max: 0.055, Label: "High", Color: "#fdae61"},
		{Rank: 5, Min: 0.055, Max: math.Inf(1), Label: "Very High", Color: "#d7191c"},
	}
}

func TestClassify(t *testing.T) {
	table := testTable()

	tests := []struct {
		name      string
		value     *float64
		wantRank  *int
		wantLabel string
		wantColor string
	}{
		{
			name:      "nil value: no data",
			value:     nil,
			wantRank:  nil,
			wantLabel: NoDataLabel,
			wantColor: NoDataColor,
		},
		{
			name:      "NaN value: no data",
			value:     ptr(math.NaN()),
			wantRank:  nil,
			wantLabel: NoDataLabel,
			wantColor: NoDataColor,
		},
		{
			name:      "below all finite bounds: unbounded lowest bin",
			value:     ptr(-3.5),
			wantRank:  intPtr(1),
			wantLabel: "Very Low",
			wantColor: "#2c7bb6",
		},
		{
			name:      "interior value",
			value:     ptr(0.04),
			wantRank:  intPtr(3),
			wantLabel: "Moderate",
			wantColor: "#ffffbf",
		},
		{
			name:      "boundary value belongs to upper bin",
			value:     ptr(0.035),
			wantRank:  intPtr(3),
			wantLabel: "Moderate",
			wantColor: "#ffffbf",
		},
		{
			name:      "above all finite bounds: unbounded highest bin",
			value:     ptr(12.0),
			wantRank:  intPtr(5),
			wantLabel: "Very High",
			wantColor: "#d7191c",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.value, table)
			if tt.wantRank == nil {
				assert.Nil(t, got.Rank)
			} else {
				require.NotNil(t, got.Rank)
				assert.Equal(t, *tt.wantRank, *got.Rank)
			}
			assert.Equal(t, tt.wantLabel, got.Label)
			assert.Equal(t, tt.wantColor, got.Color)
		})
	}
}

func TestClassifyGapFallsThrough(t *testing.T) {
	// A table with a hole between 10 and 20 classifies values in the hole
	// as no data rather than snapping to a neighbor.
	table := Table{
		{Rank: 1, Min: 0, Max: 10, Label: "Low", Color: "#111111"},
		{Rank: 2, Min: 20, Max: 30, Label: "High", Color: "#222222"},
	}

	got := Classify(ptr(15), table)
	assert.Nil(t, got.Rank)
	assert.Equal(t, NoDataLabel, got.Label)
	assert.Equal(t, NoDataColor, got.Color)
}

func TestClassifyExact(t *testing.T) {
	table := testTable()

	tests := []struct {
		name      string
		value     *float64
		wantRank  *int
		wantLabel string
	}{
		{name: "nil value: no data", value: nil, wantRank: nil, wantLabel: NoDataLabel},
		{name: "matching rank", value: ptr(4), wantRank: intPtr(4), wantLabel: "High"},
		{name: "non-integral value: no data", value: ptr(3.5), wantRank: nil, wantLabel: NoDataLabel},
		{name: "out of range rank: no data", value: ptr(9), wantRank: nil, wantLabel: NoDataLabel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyExact(tt.value, table)
			if tt.wantRank == nil {
				assert.Nil(t, got.Rank)
			} else {
				require.NotNil(t, got.Rank)
				assert.Equal(t, *tt.wantRank, *got.Rank)
			}
			assert.Equal(t, tt.wantLabel, got.Label)
		})
	}
}

func intPtr(v int) *int { return &v }
