// Package coastline acquires coastline geometry from local files, remote
// archives, and OSM extracts, and converts between lon/lat and the metric
// frame the transect sampler works in.
package coastline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
)

// Load reads coastline segments from a local GeoJSON or ESRI shapefile path,
// dispatched by extension.
func Load(path string) ([]*geom.LineString, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".geojson", ".json":
		return LoadGeoJSON(path)
	case ".shp":
		return LoadShapefile(path)
	default:
		return nil, eris.Errorf("coastline: unsupported source extension %q", ext)
	}
}

// LoadGeoJSON reads every LineString and MultiLineString feature from a
// GeoJSON feature collection. Other geometry types are skipped.
func LoadGeoJSON(path string) ([]*geom.LineString, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "coastline: read %s", path)
	}

	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrapf(err, "coastline: parse %s", path)
	}

	var lines []*geom.LineString
	for _, f := range fc.Features {
		lines = append(lines, linesFromGeometry(f.Geometry)...)
	}
	if len(lines) == 0 {
		return nil, eris.Errorf("coastline: no line geometry in %s", path)
	}
	return lines, nil
}

func linesFromGeometry(g geom.T) []*geom.LineString {
	switch t := g.(type) {
	case *geom.LineString:
		if t.NumCoords() >= 2 {
			return []*geom.LineString{t}
		}
	case *geom.MultiLineString:
		out := make([]*geom.LineString, 0, t.NumLineStrings())
		for i := 0; i < t.NumLineStrings(); i++ {
			if ls := t.LineString(i); ls.NumCoords() >= 2 {
				out = append(out, ls)
			}
		}
		return out
	}
	return nil
}

// LoadShapefile reads polyline records from an ESRI shapefile. Each part of
// a multi-part record becomes its own segment, so stitching can reorder them.
func LoadShapefile(path string) ([]*geom.LineString, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "coastline: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	var lines []*geom.LineString
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()
		pl, ok := shape.(*shp.PolyLine)
		if !ok || pl.NumParts == 0 || len(pl.Points) == 0 {
			skipped++
			continue
		}

		for i := int32(0); i < pl.NumParts; i++ {
			start := pl.Parts[i]
			end := int32(len(pl.Points))
			if i+1 < pl.NumParts {
				end = pl.Parts[i+1]
			}
			if end-start < 2 {
				continue
			}

			flat := make([]float64, 0, (end-start)*2)
			for j := start; j < end; j++ {
				flat = append(flat, pl.Points[j].X, pl.Points[j].Y)
			}
			lines = append(lines, geom.NewLineStringFlat(geom.XY, flat))
		}
	}

	if skipped > 0 {
		zap.L().Debug("coastline: skipped non-polyline records",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}
	if len(lines) == 0 {
		return nil, eris.Errorf("coastline: no polyline records in %s", path)
	}
	return lines, nil
}
