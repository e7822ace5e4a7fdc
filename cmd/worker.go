package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/hartis-org/cvi-workflow/internal/workflow"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the Temporal pipeline worker",
	Long:  "Connects to Temporal and processes CVI workflows from the configured task queue. Activities delegate to the same pipeline the run command uses, so workflow runs land in the same store and output directory.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("worker"); err != nil {
			return err
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		c, err := client.Dial(client.Options{
			HostPort:  cfg.Temporal.HostPort,
			Namespace: cfg.Temporal.Namespace,
		})
		if err != nil {
			return eris.Wrap(err, "dial temporal")
		}
		defer c.Close()

		w := workflow.NewWorker(c, cfg.Temporal.TaskQueue, &workflow.Activities{
			Pipeline: env.Pipeline,
			Store:    env.Store,
			Config:   cfg,
		})

		zap.L().Info("worker starting",
			zap.String("host_port", cfg.Temporal.HostPort),
			zap.String("task_queue", cfg.Temporal.TaskQueue),
		)
		if err := w.Run(worker.InterruptCh()); err != nil {
			return eris.Wrap(err, "run worker")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
