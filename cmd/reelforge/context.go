package main

import (
	"fmt"
	"strings"
	"sync"

	"log/slog"

	"github.com/spf13/cobra"

	"reelforge/internal/assembler"
	"reelforge/internal/checkpoint"
	"reelforge/internal/config"
	"reelforge/internal/deps"
	"reelforge/internal/logging"
	"reelforge/internal/notifications"
	"reelforge/internal/pipeline"
	"reelforge/internal/services/clipgen"
	"reelforge/internal/services/imagegen"
	"reelforge/internal/services/speech"
	"reelforge/internal/services/textgen"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// newLogger builds the configured logger, teeing to the log directory.
func (c *commandContext) newLogger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.NewForDir(cfg.Paths.LogDir, cfg.Logging.Level, cfg.Logging.Format)
}

// openOrchestrator wires the full pipeline: checkpoint store, provider
// clients, assembler, and notifier. The caller owns the store close.
func (c *commandContext) openOrchestrator(logger *slog.Logger) (*pipeline.Orchestrator, *checkpoint.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := checkpoint.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	deps := pipeline.Deps{
		TextGen:   textgen.NewClient(cfg.TextGen),
		Speech:    speech.NewClient(cfg.Speech),
		Images:    imagegen.NewClient(cfg.ImageGen),
		Clips:     clipgen.NewClient(cfg.ClipGen),
		Assembler: assembler.New(cfg, logger),
		Notifier:  notifications.NewService(cfg, logger),
	}
	return pipeline.New(cfg, store, deps, logger), store, nil
}

// checkToolchain fails fast when a required external binary is
// missing, before any provider credit is spent.
func (c *commandContext) checkToolchain() error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	if missing := deps.MissingRequired(deps.Check(cfg)); missing != nil {
		return fmt.Errorf("%s is required for final assembly: %s", missing.Name, missing.Detail)
	}
	return nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
