package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hartis-org/cvi-workflow/internal/aoi"
	"github.com/hartis-org/cvi-workflow/internal/pipeline"
)

var (
	extractArea string
	extractDir  string
	extractFrom string
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract a coastline for an area of interest",
	Long: "Geocodes an area from the AOI catalog, downloads its OSM coastline ways, and writes coastline.geojson plus an aoi.json summary. " +
		"With --from, skips geocoding and imports the coastline from a local GeoJSON/shapefile or a remote archive instead.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var res *pipeline.ExtractResult
		if extractFrom != "" {
			if extractArea != "" {
				return eris.New("--area and --from are mutually exclusive")
			}
			res, err = env.Pipeline.ImportCoastline(ctx, extractFrom, workDir(extractDir))
			if err != nil {
				return eris.Wrap(err, "import coastline")
			}
		} else {
			entry, entryErr := pickEntry(extractArea)
			if entryErr != nil {
				return entryErr
			}
			res, err = env.Pipeline.ExtractCoastline(ctx, entry, workDir(extractDir))
			if err != nil {
				return eris.Wrap(err, "extract coastline")
			}
		}

		zap.L().Info("coastline extracted",
			zap.String("area", res.Query),
			zap.Int("segments", res.Segments),
			zap.Int("zoom", res.Zoom),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractArea, "area", "", "area name from the catalog (random when empty)")
	extractCmd.Flags().StringVar(&extractDir, "dir", "", "artifact directory (default from config)")
	extractCmd.Flags().StringVar(&extractFrom, "from", "", "coastline source path or URL, bypassing geocoding")
	rootCmd.AddCommand(extractCmd)
}

// pickEntry resolves a catalog entry by name, or draws one at random when
// name is empty.
func pickEntry(name string) (aoi.Entry, error) {
	catalog, err := aoi.Load(cfg.AOI.Catalog, cfg.AOI.Sheet)
	if err != nil {
		return aoi.Entry{}, eris.Wrap(err, "load aoi catalog")
	}
	if name == "" {
		return catalog.Pick(nil), nil
	}
	entry, ok := catalog.Find(name)
	if !ok {
		return aoi.Entry{}, eris.Errorf("area %q not in catalog %s", name, cfg.AOI.Catalog)
	}
	return entry, nil
}
