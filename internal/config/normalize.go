package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeASR()
	c.normalizeLLM()
	c.normalizeTranslate()
	c.normalizeTTS()
	c.normalizeSubtitles()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.OutputDir, err = expandPath(strings.TrimSpace(c.Paths.OutputDir)); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeASR() {
	c.ASR.Model = strings.TrimSpace(c.ASR.Model)
	if c.ASR.Model == "" {
		c.ASR.Model = defaultASRModel
	}
	c.ASR.Device = strings.ToLower(strings.TrimSpace(c.ASR.Device))
	if c.ASR.Device == "" {
		c.ASR.Device = defaultASRDevice
	}
	c.ASR.VADMethod = strings.ToLower(strings.TrimSpace(c.ASR.VADMethod))
	if c.ASR.VADMethod == "" {
		c.ASR.VADMethod = defaultASRVADMethod
	}
	c.ASR.Language = strings.TrimSpace(c.ASR.Language)
	c.ASR.HFToken = strings.TrimSpace(c.ASR.HFToken)
	if c.ASR.HFToken == "" {
		if value, ok := os.LookupEnv("HF_TOKEN"); ok {
			c.ASR.HFToken = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("HUGGING_FACE_HUB_TOKEN"); ok {
			c.ASR.HFToken = strings.TrimSpace(value)
		}
	}
	if c.ASR.BatchSize <= 0 {
		c.ASR.BatchSize = defaultASRBatchSize
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.BaseURL = strings.TrimRight(strings.TrimSpace(c.LLM.BaseURL), "/")
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("LLM_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	if c.LLM.ConnectTimeoutSeconds <= 0 {
		c.LLM.ConnectTimeoutSeconds = defaultLLMConnectTimeout
	}
	if c.LLM.CacheMaxAgeDays < 0 {
		c.LLM.CacheMaxAgeDays = 0
	}
}

func (c *Config) normalizeTranslate() {
	c.Translate.TargetLang = strings.TrimSpace(c.Translate.TargetLang)
	if c.Translate.TargetLang == "" {
		c.Translate.TargetLang = defaultTargetLang
	}
	if c.Translate.SectionGap <= 0 {
		c.Translate.SectionGap = defaultTranslateSectionGap
	}
	if c.Translate.TagAttempts < 0 {
		c.Translate.TagAttempts = 0
	}
}

func (c *Config) normalizeTTS() {
	c.TTS.Voice = strings.TrimSpace(c.TTS.Voice)
	if c.TTS.Voice == "" {
		c.TTS.Voice = defaultVoice
	}
	c.TTS.AudioFormat = strings.ToLower(strings.TrimSpace(c.TTS.AudioFormat))
	if c.TTS.AudioFormat == "" {
		c.TTS.AudioFormat = defaultAudioFormat
	}
	c.TTS.TrackTitle = strings.TrimSpace(c.TTS.TrackTitle)
	if c.TTS.MinBorrow < 0.1 {
		c.TTS.MinBorrow = 0.1
	}
}

func (c *Config) normalizeSubtitles() {
	c.Subtitles.SourceTitle = strings.TrimSpace(c.Subtitles.SourceTitle)
	c.Subtitles.TranslatedTitle = strings.TrimSpace(c.Subtitles.TranslatedTitle)
	c.Subtitles.BilingualTitle = strings.TrimSpace(c.Subtitles.BilingualTitle)
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.WorkRetentionDays < 0 {
		c.Workflow.WorkRetentionDays = 0
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNtfyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

// TagAttempts returns how many times the tag protocol is tried per batch.
// The tag protocol is only used when translate.use_html is enabled.
func (c *Config) TagAttempts() int {
	if !c.Translate.UseHTML {
		return 0
	}
	return c.Translate.TagAttempts
}
