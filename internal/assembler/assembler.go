// Package assembler concatenates the generated visual clips and muxes
// the narration audio into the final video using ffmpeg.
package assembler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"reelforge/internal/config"
	"reelforge/internal/logging"
	"reelforge/internal/services"
)

type commandRunner func(ctx context.Context, name string, args ...string) error

// Assembler drives ffmpeg. The command runner is injectable for tests.
type Assembler struct {
	binary string
	run    commandRunner
	logger *slog.Logger
}

// Option customizes the assembler.
type Option func(*Assembler)

// WithCommandRunner overrides how ffmpeg is invoked.
func WithCommandRunner(run commandRunner) Option {
	return func(a *Assembler) {
		if run != nil {
			a.run = run
		}
	}
}

// New builds an assembler using the configured ffmpeg binary.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Assembler {
	if logger == nil {
		logger = logging.NewNop()
	}
	assembler := &Assembler{
		binary: cfg.FFmpegBinary(),
		run:    defaultCommandRunner,
		logger: logger.With(logging.String(logging.FieldComponent, "assembler")),
	}
	for _, opt := range opts {
		opt(assembler)
	}
	return assembler
}

// Request names the inputs and output of one assembly.
type Request struct {
	ClipPaths  []string
	AudioPath  string
	OutputPath string
}

// Assemble concatenates the clips in order and muxes the audio track,
// producing the final video at the requested path.
func (a *Assembler) Assemble(ctx context.Context, req Request) error {
	if len(req.ClipPaths) == 0 {
		return services.Wrap(services.ErrValidation, "assembler", "assemble", "no clips to assemble", nil)
	}
	if req.AudioPath == "" || req.OutputPath == "" {
		return services.Wrap(services.ErrValidation, "assembler", "assemble", "audio and output paths required", nil)
	}
	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return services.Wrap(services.ErrPersistence, "assembler", "assemble", "create output directory", err)
	}

	listPath := req.OutputPath + ".concat.txt"
	if err := writeConcatList(listPath, req.ClipPaths); err != nil {
		return services.Wrap(services.ErrPersistence, "assembler", "assemble", "write concat list", err)
	}
	defer os.Remove(listPath)

	args := buildFFmpegArgs(listPath, req.AudioPath, req.OutputPath)
	a.logger.Info("assembling final video",
		logging.Int("clips", len(req.ClipPaths)),
		logging.String("output", req.OutputPath))
	if err := a.run(ctx, a.binary, args...); err != nil {
		return services.Wrap(services.ErrTransient, "assembler", "assemble", "ffmpeg failed", err)
	}
	return nil
}

// buildFFmpegArgs assembles the concat-and-mux invocation. Clips are
// re-encoded so providers may return mismatched codecs; -shortest
// trims any visual overrun against the narration track.
func buildFFmpegArgs(listPath, audioPath, outputPath string) []string {
	return []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-i", audioPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-movflags", "+faststart",
		"-shortest",
		outputPath,
	}
}

func writeConcatList(path string, clips []string) error {
	var sb strings.Builder
	for _, clip := range clips {
		abs, err := filepath.Abs(clip)
		if err != nil {
			return err
		}
		sb.WriteString("file '")
		sb.WriteString(strings.ReplaceAll(abs, "'", `'\''`))
		sb.WriteString("'\n")
	}
	return os.WriteFile(path, []byte(sb.String()), 0o644)
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
