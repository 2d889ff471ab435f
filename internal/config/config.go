package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	OutputDir  string `toml:"output_dir"`
	LogDir     string `toml:"log_dir"`
	APIBind    string `toml:"api_bind"`
}

// TextGen contains settings for the structured text generation provider.
type TextGen struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Speech contains settings for the speech synthesis provider.
type Speech struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Voice          string `toml:"voice"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// ImageGen contains settings for the image generation provider.
type ImageGen struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Orientation    string `toml:"orientation"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// ClipGen contains settings for the video clip synthesis provider.
type ClipGen struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// CapabilityLimits bounds the scheduler for one external capability.
type CapabilityLimits struct {
	MaxInFlight           int `toml:"max_in_flight"`
	MinIntervalMS         int `toml:"min_interval_ms"`
	MaxAttempts           int `toml:"max_attempts"`
	BaseDelayMS           int `toml:"base_delay_ms"`
	MaxDelayMS            int `toml:"max_delay_ms"`
	AttemptTimeoutSeconds int `toml:"attempt_timeout_seconds"`
}

// Scheduler contains the default scheduler limits plus per-capability overrides.
type Scheduler struct {
	Defaults  CapabilityLimits            `toml:"defaults"`
	Overrides map[string]CapabilityLimits `toml:"overrides"`
}

// Alignment contains tunables for mapping narration segments onto
// synthesized-speech word timestamps.
type Alignment struct {
	// FuzzyThreshold is the minimum token-overlap ratio a candidate window
	// must reach before a fuzzy match is accepted. Range (0, 1].
	FuzzyThreshold float64 `toml:"fuzzy_threshold"`
	// MaxGapMS caps how much inter-segment silence is absorbed into the
	// preceding segment's end time.
	MaxGapMS int `toml:"max_gap_ms"`
}

// Planner contains visual clip duration tunables.
type Planner struct {
	IdealClipMS int `toml:"ideal_clip_ms"`
	MinClipMS   int `toml:"min_clip_ms"`
}

// Quality contains quality gate settings for script generation.
type Quality struct {
	Enabled     bool `toml:"enabled"`
	MaxAttempts int  `toml:"max_attempts"`
	MinScore    int  `toml:"min_score"`
}

// Notifications contains webhook push notification settings.
type Notifications struct {
	WebhookURL     string `toml:"webhook_url"`
	RequestTimeout int    `toml:"request_timeout"`
	Completion     bool   `toml:"completion"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for reelforge.
//
// Configuration sections by subsystem:
//   - Paths: staging/output/log directories and API bind address
//   - TextGen/Speech/ImageGen/ClipGen: external generation providers
//   - Scheduler: concurrency, rate, and retry limits per capability
//   - Alignment: segment-to-audio matching tunables
//   - Planner: visual clip duration planning
//   - Quality: script quality gate
//   - Notifications: webhook push on run completion/failure
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	TextGen       TextGen       `toml:"textgen"`
	Speech        Speech        `toml:"speech"`
	ImageGen      ImageGen      `toml:"imagegen"`
	ClipGen       ClipGen       `toml:"clipgen"`
	Scheduler     Scheduler     `toml:"scheduler"`
	Alignment     Alignment     `toml:"alignment"`
	Planner       Planner       `toml:"planner"`
	Quality       Quality       `toml:"quality"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/reelforge/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reelforge.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// WriteSample writes the embedded sample configuration to path.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config already exists at %s", expanded)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o644)
}

// EnsureDirectories creates the directories the pipeline writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.OutputDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable used for final assembly.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// LimitsFor returns the scheduler limits for a capability, falling back to
// the configured defaults for any zero field in an override.
func (c *Config) LimitsFor(capability string) CapabilityLimits {
	limits := c.Scheduler.Defaults
	override, ok := c.Scheduler.Overrides[capability]
	if !ok {
		return limits
	}
	if override.MaxInFlight > 0 {
		limits.MaxInFlight = override.MaxInFlight
	}
	if override.MinIntervalMS > 0 {
		limits.MinIntervalMS = override.MinIntervalMS
	}
	if override.MaxAttempts > 0 {
		limits.MaxAttempts = override.MaxAttempts
	}
	if override.BaseDelayMS > 0 {
		limits.BaseDelayMS = override.BaseDelayMS
	}
	if override.MaxDelayMS > 0 {
		limits.MaxDelayMS = override.MaxDelayMS
	}
	if override.AttemptTimeoutSeconds > 0 {
		limits.AttemptTimeoutSeconds = override.AttemptTimeoutSeconds
	}
	return limits
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
