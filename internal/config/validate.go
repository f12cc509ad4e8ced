package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateASR(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateTranslate(); err != nil {
		return err
	}
	if err := c.validateTTS(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateASR() error {
	if !c.ASR.Enabled {
		return nil
	}
	switch c.ASR.Device {
	case "cuda", "cpu":
	default:
		return fmt.Errorf("asr.device must be cuda or cpu, got %q", c.ASR.Device)
	}
	switch c.ASR.VADMethod {
	case "silero", "pyannote":
	default:
		return fmt.Errorf("asr.vad_method must be silero or pyannote, got %q", c.ASR.VADMethod)
	}
	if c.ASR.Diarize && c.ASR.HFToken == "" {
		return errors.New("asr.hf_token is required when asr.diarize is true (or set HF_TOKEN)")
	}
	return nil
}

func (c *Config) validateLLM() error {
	if !c.Translate.Enabled {
		return nil
	}
	if c.LLM.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("llm.api_key is required when translation is enabled. Set OPENAI_API_KEY or edit %s (create with 'dubbing config init')", defaultPath)
	}
	if c.LLM.RequestsPerSecond <= 0 {
		return errors.New("llm.requests_per_second must be positive")
	}
	return ensurePositiveMap(map[string]int{
		"llm.connect_timeout_seconds": c.LLM.ConnectTimeoutSeconds,
		"llm.max_in_flight":           c.LLM.MaxInFlight,
	})
}

func (c *Config) validateTranslate() error {
	if err := ensurePositiveMap(map[string]int{
		"translate.batch_size":       c.Translate.BatchSize,
		"translate.concurrency":      c.Translate.Concurrency,
		"translate.split_max_length": c.Translate.SplitMaxLength,
	}); err != nil {
		return err
	}
	if c.Translate.SplitMinTail < 0 {
		return errors.New("translate.split_min_tail must be >= 0")
	}
	if c.Translate.SplitMinTail > c.Translate.SplitMaxLength {
		return errors.New("translate.split_min_tail must not exceed translate.split_max_length")
	}
	return nil
}

func (c *Config) validateTTS() error {
	if !c.TTS.Enabled {
		return nil
	}
	switch c.TTS.AudioFormat {
	case "aac", "mp3", "opus", "flac", "ac3":
	default:
		return fmt.Errorf("tts.audio_format %q is not supported", c.TTS.AudioFormat)
	}
	if err := ensurePositiveMap(map[string]int{
		"tts.requests":    c.TTS.Requests,
		"tts.batch_chars": c.TTS.BatchChars,
	}); err != nil {
		return err
	}
	if c.TTS.WindowSeconds <= 0 {
		return errors.New("tts.window_seconds must be positive")
	}
	if c.TTS.BorrowInterval < 0 {
		return errors.New("tts.borrow_interval must be >= 0")
	}
	if c.TTS.MaxSpeedWarn < 1 {
		return errors.New("tts.max_speed_warn must be >= 1")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.MaxParallelFiles <= 0 {
		return errors.New("workflow.max_parallel_files must be positive")
	}
	if topic := c.Notifications.NtfyTopic; topic != "" &&
		!strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic must be an http(s) URL, got %q", topic)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not recognized", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
