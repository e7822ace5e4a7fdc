package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hartis-org/cvi-workflow/internal/pipeline"
)

var (
	attachDir    string
	attachDim    string
	attachValues string
)

var attachCmd = &cobra.Command{
	Use:   "attach",
	Short: "Attach classified scores for one dimension from a values file",
	Long:  "Joins per-transect values (JSON, GeoJSON, or CSV keyed by transect label) onto the transect artifact and classifies them with the dimension's thresholds table. Land cover values classify by raster code, slope and elevation by interval.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Pipeline.AttachScores(ctx, workDir(attachDir), attachDim, attachValues); err != nil {
			return eris.Wrap(err, "attach scores")
		}

		zap.L().Info("scores attached",
			zap.String("dimension", attachDim),
			zap.String("artifact", pipeline.DimensionFile(attachDim)),
		)
		return nil
	},
}

func init() {
	attachCmd.Flags().StringVar(&attachDir, "dir", "", "artifact directory (default from config)")
	attachCmd.Flags().StringVar(&attachDim, "dim", "", "dimension to attach (land_cover, slope, elevation)")
	attachCmd.Flags().StringVar(&attachValues, "values", "", "per-transect values file")
	_ = attachCmd.MarkFlagRequired("dim")
	_ = attachCmd.MarkFlagRequired("values")
	rootCmd.AddCommand(attachCmd)
}
