package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reelforge/internal/logging"
	"reelforge/internal/pipeline"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status [run-id]",
		Short: "Show run status, or list all runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, store, err := ctx.openOrchestrator(logging.NewNop())
			if err != nil {
				return err
			}
			defer store.Close()

			if len(args) == 1 {
				status, err := orch.Status(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				renderRunDetail(cmd, status)
				return nil
			}

			statuses, err := orch.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(statuses) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), runTable(statuses))
			return nil
		},
	}
}

func renderRunDetail(cmd *cobra.Command, status *pipeline.RunStatus) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:      %s\n", status.RunID)
	fmt.Fprintf(out, "Status:   %s\n", status.Status)
	if status.CurrentStage != "" {
		fmt.Fprintf(out, "Stage:    %s\n", status.CurrentStage)
	}
	fmt.Fprintf(out, "Progress: %.0f%%\n", status.Progress*100)
	if status.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:    %s\n", status.ErrorMessage)
	}
	if len(status.Artifacts) == 0 {
		return
	}
	fmt.Fprintln(out, artifactTable(status.Artifacts))
}

func shortID(id string) string {
	if idx := strings.IndexByte(id, '-'); idx > 0 {
		return id[:idx]
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
