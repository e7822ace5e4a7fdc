package main

import (
	"context"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hartis-org/cvi-workflow/internal/feature"
	"github.com/hartis-org/cvi-workflow/internal/model"
	"github.com/hartis-org/cvi-workflow/internal/pipeline"
	"github.com/hartis-org/cvi-workflow/internal/store"
)

var dbLoadRunID string

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Export runs to PostGIS",
}

var dbLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load a finished run's transects into PostGIS",
	Long:  "Upserts the run row and bulk-copies the final transect artifact into the configured schema, where it can be queried spatially alongside other coastal datasets.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("dbload"); err != nil {
			return err
		}

		// The store is only needed to resolve the run row; release it
		// before the export starts.
		var run *model.Run
		err := withStore(ctx, func(st store.Store) error {
			r, err := resolveRun(ctx, st, dbLoadRunID)
			if err != nil {
				return err
			}
			run = r
			return nil
		})
		if err != nil {
			return err
		}

		outDir := filepath.Join(cfg.Output.Dir, run.ID)
		if run.Result != nil && run.Result.OutputDir != "" {
			outDir = run.Result.OutputDir
		}

		fc, err := feature.ReadCollection(filepath.Join(outDir, pipeline.CVIFile))
		if err != nil {
			return eris.Wrap(err, "read cvi artifact")
		}

		pool, err := store.NewPool(ctx, cfg.Postgres.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		loader := store.NewPostGISLoader(pool, cfg.Postgres.Schema)
		if err := loader.EnsureSchema(ctx); err != nil {
			return err
		}
		if err := loader.LoadRun(ctx, run); err != nil {
			return err
		}
		n, err := loader.LoadTransects(ctx, run.ID, fc)
		if err != nil {
			return err
		}

		zap.L().Info("run loaded into postgis",
			zap.String("run_id", run.ID),
			zap.String("schema", cfg.Postgres.Schema),
			zap.Int64("transects", n),
		)
		return nil
	},
}

// resolveRun returns the requested run, or the most recent complete one when
// id is empty.
func resolveRun(ctx context.Context, st store.Store, id string) (*model.Run, error) {
	if id != "" {
		run, err := st.GetRun(ctx, id)
		if err != nil {
			return nil, eris.Wrapf(err, "get run %s", id)
		}
		return run, nil
	}

	runs, err := st.ListRuns(ctx, store.RunFilter{Status: model.RunStatusComplete, Limit: 1})
	if err != nil {
		return nil, eris.Wrap(err, "list runs")
	}
	if len(runs) == 0 {
		return nil, eris.New("no complete runs to load")
	}
	return &runs[0], nil
}

func init() {
	dbLoadCmd.Flags().StringVar(&dbLoadRunID, "run", "", "run id (default: most recent complete run)")
	dbCmd.AddCommand(dbLoadCmd)
	rootCmd.AddCommand(dbCmd)
}
