package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeProviders()
	c.normalizeScheduler()
	c.normalizeTunables()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		c.Paths.StagingDir = defaultStagingDir
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	return nil
}

func (c *Config) normalizeProviders() {
	c.TextGen.APIKey = strings.TrimSpace(c.TextGen.APIKey)
	c.TextGen.BaseURL = strings.TrimSpace(c.TextGen.BaseURL)
	c.TextGen.Model = strings.TrimSpace(c.TextGen.Model)
	if c.TextGen.BaseURL == "" {
		c.TextGen.BaseURL = defaultTextGenBaseURL
	}
	if c.TextGen.Model == "" {
		c.TextGen.Model = defaultTextGenModel
	}
	if c.TextGen.TimeoutSeconds <= 0 {
		c.TextGen.TimeoutSeconds = defaultTextGenTimeout
	}

	c.Speech.APIKey = strings.TrimSpace(c.Speech.APIKey)
	c.Speech.BaseURL = strings.TrimSpace(c.Speech.BaseURL)
	c.Speech.Voice = strings.TrimSpace(c.Speech.Voice)
	if c.Speech.BaseURL == "" {
		c.Speech.BaseURL = defaultSpeechBaseURL
	}
	if c.Speech.Voice == "" {
		c.Speech.Voice = defaultSpeechVoice
	}
	if c.Speech.Model == "" {
		c.Speech.Model = defaultSpeechModel
	}
	if c.Speech.TimeoutSeconds <= 0 {
		c.Speech.TimeoutSeconds = defaultSpeechTimeout
	}

	c.ImageGen.APIKey = strings.TrimSpace(c.ImageGen.APIKey)
	c.ImageGen.BaseURL = strings.TrimSpace(c.ImageGen.BaseURL)
	c.ImageGen.Orientation = strings.ToLower(strings.TrimSpace(c.ImageGen.Orientation))
	if c.ImageGen.Orientation == "" {
		c.ImageGen.Orientation = "portrait"
	}
	if c.ImageGen.TimeoutSeconds <= 0 {
		c.ImageGen.TimeoutSeconds = defaultImageGenTimeout
	}

	c.ClipGen.APIKey = strings.TrimSpace(c.ClipGen.APIKey)
	c.ClipGen.BaseURL = strings.TrimSpace(c.ClipGen.BaseURL)
	if c.ClipGen.TimeoutSeconds <= 0 {
		c.ClipGen.TimeoutSeconds = defaultClipGenTimeout
	}
}

func (c *Config) normalizeScheduler() {
	d := &c.Scheduler.Defaults
	if d.MaxInFlight <= 0 {
		d.MaxInFlight = defaultMaxInFlight
	}
	if d.MinIntervalMS <= 0 {
		d.MinIntervalMS = defaultMinIntervalMS
	}
	if d.MaxAttempts <= 0 {
		d.MaxAttempts = defaultMaxAttempts
	}
	if d.BaseDelayMS <= 0 {
		d.BaseDelayMS = defaultBaseDelayMS
	}
	if d.MaxDelayMS <= 0 {
		d.MaxDelayMS = defaultMaxDelayMS
	}
	if d.AttemptTimeoutSeconds <= 0 {
		d.AttemptTimeoutSeconds = defaultAttemptTimeout
	}
}

func (c *Config) normalizeTunables() {
	if c.Alignment.FuzzyThreshold <= 0 || c.Alignment.FuzzyThreshold > 1 {
		c.Alignment.FuzzyThreshold = defaultFuzzyThreshold
	}
	if c.Alignment.MaxGapMS < 0 {
		c.Alignment.MaxGapMS = defaultMaxGapMS
	}
	if c.Planner.IdealClipMS <= 0 {
		c.Planner.IdealClipMS = defaultIdealClipMS
	}
	if c.Planner.MinClipMS <= 0 {
		c.Planner.MinClipMS = defaultMinClipMS
	}
	if c.Quality.MaxAttempts <= 0 {
		c.Quality.MaxAttempts = defaultQualityMaxAttempts
	}
	if c.Quality.MinScore <= 0 {
		c.Quality.MinScore = defaultQualityMinScore
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = 10
	}
	c.Notifications.WebhookURL = strings.TrimSpace(c.Notifications.WebhookURL)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
