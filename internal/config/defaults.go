package config

const (
	defaultWorkDir               = "~/.local/share/dubbing/work"
	defaultStateDir              = "~/.local/share/dubbing"
	defaultLogDir                = "~/.local/share/dubbing/logs"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 30
	defaultASRModel              = "turbo"
	defaultASRDevice             = "cuda"
	defaultASRVADMethod          = "silero"
	defaultASRBatchSize          = 4
	defaultLLMBaseURL            = "https://api.openai.com/v1"
	defaultLLMModel              = "gpt-4o-mini"
	defaultLLMConnectTimeout     = 5
	defaultLLMRequestsPerSecond  = 5
	defaultLLMMaxInFlight        = 20
	defaultLLMCacheMaxAgeDays    = 90
	defaultTargetLang            = "简体中文"
	defaultTranslateBatchSize    = 10
	defaultTranslateConcurrency  = 10
	defaultTranslateTagAttempts  = 2
	defaultTranslateSectionGap   = 10.0
	defaultTranslateSplitMaxLen  = 25
	defaultTranslateSplitMinTail = 10
	defaultVoice                 = "zh-CN-YunyangNeural"
	defaultAudioFormat           = "aac"
	defaultTTSRequests           = 3
	defaultTTSWindowSeconds      = 10.0
	defaultTTSBatchChars         = 1000
	defaultTTSMinBorrow          = 1.0
	defaultTTSBorrowInterval     = 0.5
	defaultTTSMaxSpeedWarn       = 1.5
	defaultMaxParallelFiles      = 2
	defaultWorkRetentionDays     = 14
	defaultNtfyTimeout           = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:  defaultWorkDir,
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		ASR: ASR{
			Enabled:   true,
			Model:     defaultASRModel,
			Device:    defaultASRDevice,
			VADMethod: defaultASRVADMethod,
			BatchSize: defaultASRBatchSize,
		},
		LLM: LLM{
			BaseURL:               defaultLLMBaseURL,
			Model:                 defaultLLMModel,
			ConnectTimeoutSeconds: defaultLLMConnectTimeout,
			RequestsPerSecond:     defaultLLMRequestsPerSecond,
			MaxInFlight:           defaultLLMMaxInFlight,
			CacheResponses:        true,
			CacheMaxAgeDays:       defaultLLMCacheMaxAgeDays,
		},
		Translate: Translate{
			Enabled:        true,
			TargetLang:     defaultTargetLang,
			BatchSize:      defaultTranslateBatchSize,
			Concurrency:    defaultTranslateConcurrency,
			TagAttempts:    defaultTranslateTagAttempts,
			SectionGap:     defaultTranslateSectionGap,
			SplitMaxLength: defaultTranslateSplitMaxLen,
			SplitMinTail:   defaultTranslateSplitMinTail,
		},
		TTS: TTS{
			Enabled:        true,
			Voice:          defaultVoice,
			AudioFormat:    defaultAudioFormat,
			Requests:       defaultTTSRequests,
			WindowSeconds:  defaultTTSWindowSeconds,
			BatchChars:     defaultTTSBatchChars,
			AddTrack:       true,
			MinBorrow:      defaultTTSMinBorrow,
			BorrowInterval: defaultTTSBorrowInterval,
			MaxSpeedWarn:   defaultTTSMaxSpeedWarn,
		},
		Subtitles: Subtitles{
			Mux:           true,
			AddSource:     true,
			AddTranslated: true,
			AddBilingual:  true,
		},
		Workflow: Workflow{
			MaxParallelFiles:  defaultMaxParallelFiles,
			WorkRetentionDays: defaultWorkRetentionDays,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
