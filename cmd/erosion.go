package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hartis-org/cvi-workflow/internal/pipeline"
)

var (
	erosionDir        string
	erosionNoFallback bool
)

var erosionCmd = &cobra.Command{
	Use:   "erosion",
	Short: "Attach erosion scores from the Deltares coastal hazard WFS",
	Long:  "Fetches erosion segments intersecting the transect bounding box, scores each transect by the highest intersecting class, and writes the erosion artifact. When the WFS is unreachable a synthetic fallback keeps the pipeline alive unless disabled.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if erosionNoFallback {
			cfg.Erosion.SyntheticFallback = false
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Pipeline.AttachErosion(ctx, workDir(erosionDir)); err != nil {
			return eris.Wrap(err, "attach erosion")
		}

		zap.L().Info("erosion scores attached",
			zap.String("artifact", pipeline.DimensionFile("erosion")))
		return nil
	},
}

func init() {
	erosionCmd.Flags().StringVar(&erosionDir, "dir", "", "artifact directory (default from config)")
	erosionCmd.Flags().BoolVar(&erosionNoFallback, "no-fallback", false, "fail instead of generating synthetic classes when the WFS is unreachable")
	rootCmd.AddCommand(erosionCmd)
}
