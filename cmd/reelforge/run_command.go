package main

import (
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"reelforge/internal/pipeline"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var topic string
	var style string
	var segments int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate a video from a topic brief",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(topic) == "" {
				return fmt.Errorf("--topic is required")
			}
			if err := ctx.checkToolchain(); err != nil {
				return err
			}
			logger, err := ctx.newLogger()
			if err != nil {
				return err
			}
			orch, store, err := ctx.openOrchestrator(logger)
			if err != nil {
				return err
			}
			defer store.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			final, err := orch.Run(runCtx, pipeline.Input{
				Topic:          topic,
				Style:          style,
				TargetSegments: segments,
			})
			if err != nil {
				var perr *pipeline.PipelineError
				if errors.As(err, &perr) {
					fmt.Fprintf(cmd.ErrOrStderr(), "Run %s stopped at stage %s.\n", perr.RunID, perr.Stage)
					fmt.Fprintf(cmd.ErrOrStderr(), "Completed stages are checkpointed; resume with `reelforge resume %s`.\n", perr.RunID)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Video ready: %s (%.1fs)\n", final.VideoPath, float64(final.DurationMS)/1000)
			return nil
		},
	}

	cmd.Flags().StringVar(&topic, "topic", "", "Topic for the video")
	cmd.Flags().StringVar(&style, "style", "", "Visual and narration style hint")
	cmd.Flags().IntVar(&segments, "segments", 0, "Exact number of narration beats (0 lets the model decide)")
	return cmd
}

func newResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <run-id>",
		Short: "Resume a failed run from its last checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.checkToolchain(); err != nil {
				return err
			}
			logger, err := ctx.newLogger()
			if err != nil {
				return err
			}
			orch, store, err := ctx.openOrchestrator(logger)
			if err != nil {
				return err
			}
			defer store.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			final, err := orch.Resume(runCtx, args[0])
			if err != nil {
				var perr *pipeline.PipelineError
				if errors.As(err, &perr) {
					fmt.Fprintf(cmd.ErrOrStderr(), "Run %s failed again at stage %s.\n", perr.RunID, perr.Stage)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Video ready: %s (%.1fs)\n", final.VideoPath, float64(final.DurationMS)/1000)
			return nil
		},
	}
}
