// Package feature handles GeoJSON artifact I/O and the label-keyed property
// plumbing between pipeline steps.
package feature

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/hartis-org/cvi-workflow/internal/model"
)

// ReadCollection reads a GeoJSON feature collection from disk.
func ReadCollection(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "feature: read %s", path)
	}
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrapf(err, "feature: parse %s", path)
	}
	return &fc, nil
}

// WriteCollection writes a GeoJSON feature collection, creating parent
// directories as needed.
func WriteCollection(path string, fc *geojson.FeatureCollection) error {
	data, err := json.Marshal(fc)
	if err != nil {
		return eris.Wrap(err, "feature: marshal collection")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "feature: create dir for %s", path)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "feature: write %s", path)
	}
	return nil
}

// LineCollection wraps raw line geometries in a property-less feature
// collection, one feature per line.
func LineCollection(lines []*geom.LineString) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(lines))}
	for _, line := range lines {
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry:   line,
			Properties: map[string]any{},
		})
	}
	return fc
}

// TransectCollection converts transects into a feature collection. Every
// feature carries the transect label plus the total processed coastline
// length, so later steps can recover both without the source line.
func TransectCollection(transects []model.Transect, processedKM float64) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(transects))}
	for _, tr := range transects {
		line := geom.NewLineStringFlat(geom.XY, []float64{
			tr.Start[0], tr.Start[1],
			tr.End[0], tr.End[1],
		})
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry: line,
			Properties: map[string]any{
				"label":               tr.Label,
				"processed_length_km": processedKM,
			},
		})
	}
	return fc
}

// Transects rebuilds the transect slice from a collection written by
// TransectCollection. Features without a label get one derived from their
// position, matching the labels the sampler would have assigned.
func Transects(fc *geojson.FeatureCollection) ([]model.Transect, error) {
	out := make([]model.Transect, 0, len(fc.Features))
	for i, f := range fc.Features {
		label, ok := PropertyString(f, "label")
		if !ok {
			label = fmt.Sprintf("T%d", i+1)
		}
		line, ok := f.Geometry.(*geom.LineString)
		if !ok || line.NumCoords() < 2 {
			return nil, eris.Errorf("feature: transect %s is not a line", label)
		}
		out = append(out, model.Transect{
			Label: label,
			Index: len(out),
			Start: line.Coord(0),
			End:   line.Coord(line.NumCoords() - 1),
		})
	}
	return out, nil
}

// Labels returns the label property of every feature, in collection order.
// Unlabeled features are skipped.
func Labels(fc *geojson.FeatureCollection) []string {
	out := make([]string, 0, len(fc.Features))
	for _, f := range fc.Features {
		if label, ok := PropertyString(f, "label"); ok {
			out = append(out, label)
		}
	}
	return out
}

// FloatsByLabel extracts the named numeric property keyed by feature label.
// Labels whose value is missing, null, or non-numeric are left out, which
// is how upstream no-data propagates.
func FloatsByLabel(fc *geojson.FeatureCollection, prop string) map[string]float64 {
	out := make(map[string]float64, len(fc.Features))
	for _, f := range fc.Features {
		label, ok := PropertyString(f, "label")
		if !ok {
			continue
		}
		if v, ok := PropertyFloat(f, prop); ok {
			out[label] = v
		}
	}
	return out
}

// AttachProperties merges per-label property maps into matching features
// in place. It reports how many features matched and how many labels had
// no matching feature.
func AttachProperties(fc *geojson.FeatureCollection, props map[string]map[string]any) (matched, missed int) {
	seen := make(map[string]bool, len(props))
	for _, f := range fc.Features {
		label, ok := PropertyString(f, "label")
		if !ok {
			continue
		}
		p, ok := props[label]
		if !ok {
			continue
		}
		if f.Properties == nil {
			f.Properties = make(map[string]any, len(p))
		}
		for k, v := range p {
			f.Properties[k] = v
		}
		seen[label] = true
		matched++
	}
	return matched, len(props) - len(seen)
}

// CollectionBounds computes the lon/lat bounding box over every feature
// geometry.
func CollectionBounds(fc *geojson.FeatureCollection) (model.BBox, error) {
	box := model.BBox{
		MinLat: math.Inf(1), MaxLat: math.Inf(-1),
		MinLon: math.Inf(1), MaxLon: math.Inf(-1),
	}
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		b := f.Geometry.Bounds()
		box.MinLon = math.Min(box.MinLon, b.Min(0))
		box.MaxLon = math.Max(box.MaxLon, b.Max(0))
		box.MinLat = math.Min(box.MinLat, b.Min(1))
		box.MaxLat = math.Max(box.MaxLat, b.Max(1))
	}
	if math.IsInf(box.MinLon, 1) {
		return model.BBox{}, eris.New("feature: collection has no coordinates")
	}
	return box, nil
}

// ProcessedKM returns the processed_length_km property from the first
// feature that carries it.
func ProcessedKM(fc *geojson.FeatureCollection) (float64, bool) {
	for _, f := range fc.Features {
		if v, ok := PropertyFloat(f, "processed_length_km"); ok {
			return v, true
		}
	}
	return 0, false
}

// PropertyString returns the named property when present and a string.
func PropertyString(f *geojson.Feature, key string) (string, bool) {
	v, ok := f.Properties[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// PropertyFloat returns the named property when present and numeric.
// Decoded JSON numbers arrive as float64; ints cover values set in-process.
func PropertyFloat(f *geojson.Feature, key string) (float64, bool) {
	v, ok := f.Properties[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		parsed, err := n.Float64()
		return parsed, err == nil
	default:
		return 0, false
	}
}
