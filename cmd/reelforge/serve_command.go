package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"reelforge/internal/api"
	"reelforge/internal/deps"
	"reelforge/internal/logging"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the run API until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.newLogger()
			if err != nil {
				return err
			}
			for _, status := range deps.Check(cfg) {
				if !status.Available {
					logger.Warn("external dependency unavailable",
						logging.String("name", status.Name),
						logging.String("detail", status.Detail))
				}
			}
			orch, store, err := ctx.openOrchestrator(logger)
			if err != nil {
				return err
			}
			defer store.Close()

			serveCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			server := api.NewServer(cfg, orch, logger)
			if err := server.Start(serveCtx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "API listening on %s. Press Ctrl-C to stop.\n", server.Addr())

			<-serveCtx.Done()
			server.Stop()
			return nil
		},
	}
}
