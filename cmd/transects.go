package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	transectsDir     string
	transectsSpacing float64
	transectsLength  float64
	transectsMax     float64
)

var transectsCmd = &cobra.Command{
	Use:   "transects",
	Short: "Sample cross-shore transects along an extracted coastline",
	Long:  "Stitches the coastline artifact into one polyline, samples evenly spaced cross-shore transects in a metric frame, and writes transects.geojson.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if transectsSpacing > 0 {
			cfg.Sampling.SpacingM = transectsSpacing
		}
		if transectsLength > 0 {
			cfg.Sampling.TransectLengthM = transectsLength
		}
		if transectsMax > 0 {
			cfg.Sampling.MaxCoastM = transectsMax
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Pipeline.GenerateTransects(ctx, workDir(transectsDir))
		if err != nil {
			return eris.Wrap(err, "generate transects")
		}

		zap.L().Info("transects generated",
			zap.Int("count", res.Count),
			zap.Float64("processed_km", res.ProcessedKM),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	transectsCmd.Flags().StringVar(&transectsDir, "dir", "", "artifact directory (default from config)")
	transectsCmd.Flags().Float64Var(&transectsSpacing, "spacing", 0, "transect spacing in meters (default from config)")
	transectsCmd.Flags().Float64Var(&transectsLength, "length", 0, "transect length in meters (default from config)")
	transectsCmd.Flags().Float64Var(&transectsMax, "max-coast", 0, "max processed coastline length in meters (default from config)")
	rootCmd.AddCommand(transectsCmd)
}
