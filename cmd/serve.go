package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hartis-org/cvi-workflow/internal/server"
	"github.com/hartis-org/cvi-workflow/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve run history, artifacts, and the map viewer",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort > 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		return withStore(ctx, func(st store.Store) error {
			return server.New(cfg, st).ListenAndServe(ctx)
		})
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port, overrides server.port")
	rootCmd.AddCommand(serveCmd)
}
