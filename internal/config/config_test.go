package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"reelforge/internal/config"
)

func TestDefaultNormalizesAndValidates(t *testing.T) {
	cfg := config.Default()
	cfg.TextGen.APIKey = "test"
	cfg.Speech.APIKey = "test"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, `
[textgen]
api_key = "tg-key"
[speech]
api_key = "sp-key"
`)

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be detected")
	}
	if resolved != path {
		t.Fatalf("resolved path = %q, want %q", resolved, path)
	}
	if cfg.Planner.IdealClipMS != 3000 || cfg.Planner.MinClipMS != 2000 {
		t.Fatalf("planner defaults not applied: %+v", cfg.Planner)
	}
	if cfg.Scheduler.Defaults.MaxInFlight != 4 {
		t.Fatalf("scheduler defaults not applied: %+v", cfg.Scheduler.Defaults)
	}
}

func TestLoadRejectsMissingAPIKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, `
[speech]
api_key = "sp-key"
`)
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected validation error for missing textgen key")
	}
}

func TestLoadRejectsBadOrientation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, `
[textgen]
api_key = "tg"
[speech]
api_key = "sp"
[imagegen]
orientation = "diagonal"
`)
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected validation error for orientation")
	}
}

func TestLoadRejectsMinClipAboveIdeal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, `
[textgen]
api_key = "tg"
[speech]
api_key = "sp"
[planner]
ideal_clip_ms = 2000
min_clip_ms = 2500
`)
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected validation error for planner durations")
	}
}

func TestLimitsForMergesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, `
[textgen]
api_key = "tg"
[speech]
api_key = "sp"
[scheduler.overrides.image-generation]
max_in_flight = 2
min_interval_ms = 2500
`)
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	limits := cfg.LimitsFor("image-generation")
	if limits.MaxInFlight != 2 || limits.MinIntervalMS != 2500 {
		t.Fatalf("override not applied: %+v", limits)
	}
	if limits.MaxAttempts != 3 {
		t.Fatalf("unset override field should inherit default, got %+v", limits)
	}

	fallback := cfg.LimitsFor("speech-synthesis")
	if fallback != cfg.Scheduler.Defaults {
		t.Fatalf("unknown capability should use defaults, got %+v", fallback)
	}
}

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}
