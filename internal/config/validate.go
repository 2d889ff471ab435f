package config

import (
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateProviders(); err != nil {
		return err
	}
	if err := c.validateScheduler(); err != nil {
		return err
	}
	if err := c.validateTunables(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateProviders() error {
	if c.TextGen.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/reelforge/config.toml"
		}
		return fmt.Errorf("textgen.api_key is required. Set REELFORGE_TEXTGEN_API_KEY env var or edit %s (create with 'reelforge config init')", defaultPath)
	}
	if c.Speech.APIKey == "" {
		return fmt.Errorf("speech.api_key is required for narration synthesis")
	}
	switch c.ImageGen.Orientation {
	case "portrait", "landscape", "square":
	default:
		return fmt.Errorf("imagegen.orientation must be portrait, landscape, or square (got %q)", c.ImageGen.Orientation)
	}
	return nil
}

func (c *Config) validateScheduler() error {
	for name, limits := range c.Scheduler.Overrides {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("scheduler.overrides: capability name must not be empty")
		}
		if limits.MaxInFlight < 0 || limits.MinIntervalMS < 0 || limits.MaxAttempts < 0 {
			return fmt.Errorf("scheduler.overrides.%s: limits must not be negative", name)
		}
	}
	return nil
}

func (c *Config) validateTunables() error {
	if c.Planner.MinClipMS > c.Planner.IdealClipMS {
		return fmt.Errorf("planner.min_clip_ms (%d) must not exceed planner.ideal_clip_ms (%d)", c.Planner.MinClipMS, c.Planner.IdealClipMS)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error (got %q)", c.Logging.Level)
	}
	return nil
}
