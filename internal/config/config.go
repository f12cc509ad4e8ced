package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	// OutputDir receives the final artifacts. Empty means next to each input.
	OutputDir string `toml:"output_dir"`
	WorkDir   string `toml:"work_dir"`
	StateDir  string `toml:"state_dir"`
	LogDir    string `toml:"log_dir"`
}

// ASR contains WhisperX transcription settings.
type ASR struct {
	Enabled   bool   `toml:"enabled"`
	Model     string `toml:"model"`
	Device    string `toml:"device"`
	Language  string `toml:"language"`
	Align     bool   `toml:"align"`
	Diarize   bool   `toml:"diarize"`
	VADMethod string `toml:"vad_method"`
	HFToken   string `toml:"hf_token"`
	BatchSize int    `toml:"batch_size"`
}

// LLM contains connection settings for the OpenAI-compatible translation API.
type LLM struct {
	APIKey                string  `toml:"api_key"`
	BaseURL               string  `toml:"base_url"`
	Model                 string  `toml:"model"`
	ConnectTimeoutSeconds int     `toml:"connect_timeout_seconds"`
	RequestsPerSecond     float64 `toml:"requests_per_second"`
	MaxInFlight           int     `toml:"max_in_flight"`
	CacheResponses        bool    `toml:"cache_responses"`
	CacheMaxAgeDays       int     `toml:"cache_max_age_days"`
}

// Translate contains subtitle translation settings.
type Translate struct {
	Enabled        bool    `toml:"enabled"`
	TargetLang     string  `toml:"target_lang"`
	BatchSize      int     `toml:"batch_size"`
	Concurrency    int     `toml:"concurrency"`
	UseHTML        bool    `toml:"use_html"`
	TagAttempts    int     `toml:"tag_attempts"`
	RemoveEllipsis bool    `toml:"remove_ellipsis"`
	SectionGap     float64 `toml:"section_gap"`
	SplitMaxLength int     `toml:"split_max_length"`
	SplitMinTail   int     `toml:"split_min_tail"`
}

// TTS contains speech synthesis settings.
type TTS struct {
	Enabled        bool    `toml:"enabled"`
	Voice          string  `toml:"voice"`
	AudioFormat    string  `toml:"audio_format"`
	Requests       int     `toml:"requests"`
	WindowSeconds  float64 `toml:"window_seconds"`
	BatchChars     int     `toml:"batch_chars"`
	AddTrack       bool    `toml:"add_track"`
	TrackTitle     string  `toml:"track_title"`
	MinBorrow      float64 `toml:"min_borrow"`
	BorrowInterval float64 `toml:"borrow_interval"`
	MaxSpeedWarn   float64 `toml:"max_speed_warn"`
}

// Subtitles contains soft-subtitle muxing settings.
type Subtitles struct {
	Mux                bool   `toml:"mux"`
	AddSource          bool   `toml:"add_source"`
	AddTranslated      bool   `toml:"add_translated"`
	AddBilingual       bool   `toml:"add_bilingual"`
	TranslatedFirst    bool   `toml:"translated_first"`
	SourceTitle        string `toml:"source_title"`
	TranslatedTitle    string `toml:"translated_title"`
	BilingualTitle     string `toml:"bilingual_title"`
	MkvmergeBinaryPath string `toml:"mkvmerge_binary"`
}

// Workflow contains run-level settings.
type Workflow struct {
	MaxParallelFiles int  `toml:"max_parallel_files"`
	KeepIntermediate bool `toml:"keep_intermediate"`
	// WorkRetentionDays prunes work directories of files that never
	// finished. Zero keeps them forever.
	WorkRetentionDays int `toml:"work_retention_days"`
}

// Notifications contains ntfy settings.
type Notifications struct {
	// NtfyTopic is the full topic URL; empty disables notifications.
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	// NotifyFileFailures sends one message per failed file in addition to
	// the end-of-run summary.
	NotifyFileFailures bool `toml:"notify_file_failures"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
	LLMMessages   bool   `toml:"llm_messages"`
}

// Config encapsulates all configuration values for dubbing.
//
// Configuration sections by subsystem:
//   - Paths: output, work, state and log directories
//   - ASR: WhisperX transcription
//   - LLM: OpenAI-compatible translation endpoint
//   - Translate: batching and reflow of translated subtitles
//   - TTS: edge-tts voice, rate limits and time borrowing
//   - Subtitles: soft subtitle tracks muxed into the output
//   - Workflow: per-run concurrency and intermediate artifacts
//   - Notifications: ntfy run summaries
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	ASR           ASR           `toml:"asr"`
	LLM           LLM           `toml:"llm"`
	Translate     Translate     `toml:"translate"`
	TTS           TTS           `toml:"tts"`
	Subtitles     Subtitles     `toml:"subtitles"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

const defaultConfigPath = "~/.config/dubbing/config.toml"

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A .env file in the working directory, when
// present, is loaded before environment fallbacks are consulted.
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
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadDotEnv(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv reads ./.env without overriding variables already set.
func loadDotEnv() error {
	if _, err := os.Stat(".env"); err != nil {
		return nil
	}
	if err := godotenv.Load(".env"); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
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

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("dubbing.toml")
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

// EnsureDirectories creates the work, state and log directories. The output
// directory is created only when configured.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.WorkDir, c.Paths.StateDir, c.Paths.LogDir}
	if strings.TrimSpace(c.Paths.OutputDir) != "" {
		dirs = append(dirs, c.Paths.OutputDir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for media inspection.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// MkvmergeBinary returns the mkvmerge executable used for subtitle muxing.
func (c *Config) MkvmergeBinary() string {
	if bin := strings.TrimSpace(c.Subtitles.MkvmergeBinaryPath); bin != "" {
		return bin
	}
	return "mkvmerge"
}

// OutputDirFor returns the directory that receives artifacts for input.
func (c *Config) OutputDirFor(input string) string {
	if c.Paths.OutputDir != "" {
		return c.Paths.OutputDir
	}
	return filepath.Dir(input)
}

// TrackTitle returns the dubbed audio track title, defaulting to the voice.
func (c *Config) TrackTitle() string {
	if title := strings.TrimSpace(c.TTS.TrackTitle); title != "" {
		return title
	}
	return c.TTS.Voice
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

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
