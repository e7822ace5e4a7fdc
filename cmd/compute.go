package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var computeDir string

var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Compute the composite vulnerability index",
	Long:  "Merges the per-dimension score artifacts onto the transect set, computes the equal-weight composite index with dataset min-max normalization, and writes the final CVI artifact.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Pipeline.ComputeCVI(ctx, workDir(computeDir))
		if err != nil {
			return eris.Wrap(err, "compute cvi")
		}

		zap.L().Info("composite index computed",
			zap.Int("transects", res.Transects),
			zap.Int("scored", res.Scored),
			zap.Float64p("mean_cvi", res.MeanCVI),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	computeCmd.Flags().StringVar(&computeDir, "dir", "", "artifact directory (default from config)")
	rootCmd.AddCommand(computeCmd)
}
