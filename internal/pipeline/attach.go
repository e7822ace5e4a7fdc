package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/hartis-org/cvi-workflow/internal/classify"
	"github.com/hartis-org/cvi-workflow/internal/feature"
	"github.com/hartis-org/cvi-workflow/internal/fetcher"
)

// ReadValues loads per-transect values keyed by label from a values file.
// Three layouts are accepted: a flat JSON object of label to number, a
// GeoJSON collection whose features carry a "<dim>_value" (or "value")
// property, and two-column label,value CSV. Entries with missing or
// non-numeric values are skipped.
func ReadValues(path, dim string) (map[string]float64, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json", ".geojson":
		return readJSONValues(path, dim)
	case ".csv":
		return readCSVValues(path)
	default:
		return nil, eris.Errorf("pipeline: unsupported values format %q", ext)
	}
}

func readJSONValues(path, dim string) (map[string]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: read values %s", path)
	}

	// Flat map first; null entries mean no data for that label.
	var flat map[string]*float64
	if err := json.Unmarshal(data, &flat); err == nil {
		out := make(map[string]float64, len(flat))
		for label, v := range flat {
			if v != nil {
				out[label] = *v
			}
		}
		return out, nil
	}

	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrapf(err, "pipeline: parse values %s", path)
	}
	out := feature.FloatsByLabel(&fc, dim+"_value")
	if len(out) == 0 {
		out = feature.FloatsByLabel(&fc, "value")
	}
	return out, nil
}

func readCSVValues(path string) (map[string]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: open values %s", path)
	}
	defer f.Close() //nolint:errcheck

	header, rows, err := fetcher.ReadCSV(f, fetcher.CSVOptions{HasHeader: true, TrimSpace: true})
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: parse values %s", path)
	}

	out := make(map[string]float64, len(rows)+1)
	// A headerless file's first row is data: keep it when its second cell
	// parses as a number.
	if len(header) >= 2 {
		if v, convErr := strconv.ParseFloat(header[1], 64); convErr == nil {
			out[header[0]] = v
		}
	}
	for _, row := range rows {
		if len(row) < 2 || row[0] == "" {
			continue
		}
		v, convErr := strconv.ParseFloat(row[1], 64)
		if convErr != nil {
			continue
		}
		out[row[0]] = v
	}
	return out, nil
}

// AttachScores classifies externally sampled values for one dimension and
// writes the annotated transect artifact. Slope and elevation values fall
// into interval bins; land cover values are discrete raster codes resolved
// through the code lookup. Values for labels with no matching transect are
// ignored, and transects without a value classify as no data.
func (p *Pipeline) AttachScores(ctx context.Context, dir, dim, valuesPath string) error {
	fc, err := feature.ReadCollection(filepath.Join(dir, TransectsFile))
	if err != nil {
		return err
	}
	values, err := ReadValues(valuesPath, dim)
	if err != nil {
		return err
	}

	classifyValue, err := p.dimensionClassifier(dim)
	if err != nil {
		return err
	}

	log := zap.L().With(
		zap.String("component", "attach"),
		zap.String("dimension", dim),
	)

	labels := feature.Labels(fc)
	known := make(map[string]bool, len(labels))

	props := make(map[string]map[string]any, len(labels))
	classified := 0
	for _, label := range labels {
		known[label] = true

		var v *float64
		if value, ok := values[label]; ok {
			v = &value
		}
		res := classifyValue(v)

		rec := map[string]any{
			dim + "_value": nil,
			dim + "_score": nil,
			dim + "_label": res.Label,
			dim + "_color": res.Color,
		}
		if v != nil {
			rec[dim+"_value"] = *v
		}
		if res.Rank != nil {
			rec[dim+"_score"] = *res.Rank
			classified++
		}
		props[label] = rec
	}

	unknown := 0
	for label := range values {
		if !known[label] {
			unknown++
		}
	}
	if unknown > 0 {
		log.Debug("attach: values for unknown labels ignored", zap.Int("count", unknown))
	}

	matched, _ := feature.AttachProperties(fc, props)
	if err := feature.WriteCollection(filepath.Join(dir, DimensionFile(dim)), fc); err != nil {
		return err
	}

	log.Info("attach: scores written",
		zap.Int("transects", matched),
		zap.Int("classified", classified),
	)
	return nil
}

// dimensionClassifier returns the scoring function for one external
// dimension.
func (p *Pipeline) dimensionClassifier(dim string) (func(*float64) classify.Result, error) {
	switch dim {
	case "land_cover":
		lookup, err := p.thresholds.LandCoverLookup()
		if err != nil {
			return nil, err
		}
		return func(v *float64) classify.Result {
			if v == nil {
				return classify.NoData()
			}
			return lookup.Classify(int(*v))
		}, nil
	case "slope", "elevation":
		table, err := p.thresholds.Table(dim)
		if err != nil {
			return nil, err
		}
		return func(v *float64) classify.Result {
			return classify.Classify(v, table)
		}, nil
	default:
		return nil, eris.Errorf("pipeline: unsupported dimension %q", dim)
	}
}
