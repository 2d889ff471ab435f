package config

const (
	defaultStagingDir = "~/.local/share/reelforge/staging"
	defaultOutputDir  = "~/.local/share/reelforge/output"
	defaultLogDir     = "~/.local/share/reelforge/logs"
	defaultAPIBind    = "127.0.0.1:8329"

	defaultTextGenBaseURL = "https://openrouter.ai/api/v1/chat/completions"
	defaultTextGenModel   = "google/gemini-3-flash-preview"
	defaultTextGenTimeout = 60

	defaultSpeechBaseURL = "https://api.elevenlabs.io/v1"
	defaultSpeechVoice   = "rachel"
	defaultSpeechModel   = "eleven_v3"
	defaultSpeechTimeout = 180

	defaultImageGenTimeout = 120
	defaultClipGenTimeout  = 600

	defaultMaxInFlight    = 4
	defaultMinIntervalMS  = 1000
	defaultMaxAttempts    = 3
	defaultBaseDelayMS    = 1000
	defaultMaxDelayMS     = 30000
	defaultAttemptTimeout = 120

	defaultFuzzyThreshold = 0.6
	defaultMaxGapMS       = 300

	defaultIdealClipMS = 3000
	defaultMinClipMS   = 2000

	defaultQualityMaxAttempts = 3
	defaultQualityMinScore    = 7

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			OutputDir:  defaultOutputDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		TextGen: TextGen{
			BaseURL:        defaultTextGenBaseURL,
			Model:          defaultTextGenModel,
			TimeoutSeconds: defaultTextGenTimeout,
		},
		Speech: Speech{
			BaseURL:        defaultSpeechBaseURL,
			Voice:          defaultSpeechVoice,
			Model:          defaultSpeechModel,
			TimeoutSeconds: defaultSpeechTimeout,
		},
		ImageGen: ImageGen{
			Orientation:    "portrait",
			TimeoutSeconds: defaultImageGenTimeout,
		},
		ClipGen: ClipGen{
			TimeoutSeconds: defaultClipGenTimeout,
		},
		Scheduler: Scheduler{
			Defaults: CapabilityLimits{
				MaxInFlight:           defaultMaxInFlight,
				MinIntervalMS:         defaultMinIntervalMS,
				MaxAttempts:           defaultMaxAttempts,
				BaseDelayMS:           defaultBaseDelayMS,
				MaxDelayMS:            defaultMaxDelayMS,
				AttemptTimeoutSeconds: defaultAttemptTimeout,
			},
		},
		Alignment: Alignment{
			FuzzyThreshold: defaultFuzzyThreshold,
			MaxGapMS:       defaultMaxGapMS,
		},
		Planner: Planner{
			IdealClipMS: defaultIdealClipMS,
			MinClipMS:   defaultMinClipMS,
		},
		Quality: Quality{
			Enabled:     true,
			MaxAttempts: defaultQualityMaxAttempts,
			MinScore:    defaultQualityMinScore,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			Completion:     true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
