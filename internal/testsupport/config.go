package testsupport

import (
	"path/filepath"
	"testing"

	"reelforge/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.TextGen.APIKey = "test"
	cfg.Speech.APIKey = "test"
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.OutputDir = filepath.Join(base, "output")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithSchedulerLimits overrides the default scheduler limits on the test config.
func WithSchedulerLimits(limits config.CapabilityLimits) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Scheduler.Defaults = limits
	}
}

// WithQualityGate configures the script quality gate on the test config.
func WithQualityGate(enabled bool, maxAttempts int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Quality.Enabled = enabled
		cfg.Quality.MaxAttempts = maxAttempts
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}
