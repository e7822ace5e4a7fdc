package classify

import (
	"math"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"
)

// ClassSpec is one rank's raw configuration entry. Min and Max are nil when
// the bound is unbounded. Palette references an entry in the shared palette;
// when empty, the rank key itself is used. Color overrides the palette with
// a direct value, and Codes lists the discrete raster codes that map onto
// this rank for code-keyed dimensions such as land cover.
type ClassSpec struct {
	Min     *float64 `json:"min" yaml:"min" mapstructure:"min"`
	Max     *float64 `json:"max" yaml:"max" mapstructure:"max"`
	Label   string   `json:"label" yaml:"label" mapstructure:"label"`
	Palette string   `json:"palette" yaml:"palette" mapstructure:"palette"`
	Color   string   `json:"color" yaml:"color" mapstructure:"color"`
	Codes   []int    `json:"codes" yaml:"codes" mapstructure:"codes"`
}

// PaletteEntry holds the display color for one palette index.
type PaletteEntry struct {
	Color string `json:"color" yaml:"color" mapstructure:"color"`
}

// Palette maps a palette index to its display color.
type Palette map[string]PaletteEntry

// BuildTable converts raw class specs keyed by rank string into a validated
// Table sorted ascending by rank. It fails fast on unparsable ranks,
// duplicate ranks, unresolvable color references, and empty intervals;
// a malformed bin is never silently dropped.
func BuildTable(classes map[string]ClassSpec, palette Palette) (Table, error) {
	if len(classes) == 0 {
		return nil, eris.New("classify: no classes defined")
	}

	table := make(Table, 0, len(classes))
	seen := make(map[int]bool, len(classes))

	for rankStr, spec := range classes {
		rank, err := strconv.Atoi(rankStr)
		if err != nil {
			return nil, eris.Wrapf(err, "classify: rank %q is not an integer", rankStr)
		}
		if seen[rank] {
			return nil, eris.Errorf("classify: duplicate rank %d", rank)
		}
		seen[rank] = true

		color, err := resolveColor(spec, rankStr, palette)
		if err != nil {
			return nil, err
		}

		vmin := math.Inf(-1)
		if spec.Min != nil {
			vmin = *spec.Min
		}
		vmax := math.Inf(1)
		if spec.Max != nil {
			vmax = *spec.Max
		}
		if vmin >= vmax {
			return nil, eris.Errorf("classify: rank %d has empty interval [%g, %g)", rank, vmin, vmax)
		}

		table = append(table, Bin{
			Rank:  rank,
			Min:   vmin,
			Max:   vmax,
			Label: spec.Label,
			Color: color,
		})
	}

	sort.Slice(table, func(i, j int) bool { return table[i].Rank < table[j].Rank })
	return table, nil
}

// resolveColor returns the bin's display color: a direct Color wins,
// otherwise the palette is consulted with the configured reference,
// defaulting to the rank key itself.
func resolveColor(spec ClassSpec, rankStr string, palette Palette) (string, error) {
	if spec.Color != "" {
		return spec.Color, nil
	}
	ref := spec.Palette
	if ref == "" {
		ref = rankStr
	}
	entry, ok := palette[ref]
	if !ok || entry.Color == "" {
		return "", eris.Errorf("classify: rank %s references unknown palette entry %q", rankStr, ref)
	}
	return entry.Color, nil
}

// CodeLookup maps a discrete raster code to its classification bin. It
// serves dimensions where the raw value is a categorical code rather than
// a continuous measurement.
type CodeLookup map[int]Bin

// BuildCodeLookup flattens the per-rank code lists into a code-keyed lookup.
// Every rank must carry a direct color; a code claimed by two ranks is a
// configuration error.
func BuildCodeLookup(classes map[string]ClassSpec) (CodeLookup, error) {
	if len(classes) == 0 {
		return nil, eris.New("classify: no classes defined")
	}

	lookup := make(CodeLookup)
	for rankStr, spec := range classes {
		rank, err := strconv.Atoi(rankStr)
		if err != nil {
			return nil, eris.Wrapf(err, "classify: rank %q is not an integer", rankStr)
		}
		if spec.Color == "" {
			return nil, eris.Errorf("classify: rank %d has no color", rank)
		}
		for _, code := range spec.Codes {
			if prev, ok := lookup[code]; ok {
				return nil, eris.Errorf("classify: code %d claimed by ranks %d and %d", code, prev.Rank, rank)
			}
			lookup[code] = Bin{Rank: rank, Label: spec.Label, Color: spec.Color}
		}
	}
	return lookup, nil
}

// Classify returns the classification for a raster code, or No Data when
// the code is unmapped.
func (l CodeLookup) Classify(code int) Result {
	b, ok := l[code]
	if !ok {
		return NoData()
	}
	rank := b.Rank
	return Result{Rank: &rank, Label: b.Label, Color: b.Color}
}
