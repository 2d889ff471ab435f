package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reelforge/internal/services"
	"reelforge/internal/services/textgen"
)

func newTestProvidersCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-providers",
		Short: "Ping the text generation provider with the configured key",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client := textgen.NewClient(cfg.TextGen)
			if err := client.HealthCheck(cmd.Context()); err != nil {
				return fmt.Errorf("text generation check failed: %s", services.Message(err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Text generation responding (%s)\n", cfg.TextGen.Model)
			return nil
		},
	}
}
