package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"dubbing/internal/config"
	"dubbing/internal/deps"
	"dubbing/internal/services/llm"
)

// llmCheckTimeout bounds the single health-check request.
const llmCheckTimeout = 30 * time.Second

// CheckLLM verifies that the translation API is reachable and the key is
// valid. It makes a single attempt with no retries.
func CheckLLM(ctx context.Context, cfg config.LLM) Result {
	const name = "Translation LLM"
	if cfg.APIKey == "" {
		return Result{Name: name, Detail: "API key missing"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, llmCheckTimeout)
	defer cancel()
	client := llm.NewClient(LLMConfig(cfg), llm.WithRetryMaxAttempts(1))
	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeLLMError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s reachable", client.Model())}
}

// LLMConfig maps the [llm] config section onto client settings.
func LLMConfig(cfg config.LLM) llm.Config {
	return llm.Config{
		APIKey:                cfg.APIKey,
		BaseURL:               cfg.BaseURL,
		Model:                 cfg.Model,
		ConnectTimeoutSeconds: cfg.ConnectTimeoutSeconds,
		RequestsPerSecond:     cfg.RequestsPerSecond,
		MaxInFlight:           cfg.MaxInFlight,
	}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// Requirements lists the external tools the enabled stages need.
func Requirements(cfg *config.Config) []deps.Requirement {
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Required for audio extraction and assembly",
			VersionArgs: []string{"-version"},
		},
		{
			Name:        "FFprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Required for input inspection",
			VersionArgs: []string{"-version"},
		},
	}
	if cfg.ASR.Enabled || cfg.TTS.Enabled {
		requirements = append(requirements, deps.Requirement{
			Name:        "uvx",
			Command:     "uvx",
			Description: "Runs WhisperX transcription and edge-tts synthesis",
			VersionArgs: []string{"--version"},
		})
	}
	if cfg.Subtitles.Mux {
		requirements = append(requirements, deps.Requirement{
			Name:        "mkvmerge",
			Command:     cfg.MkvmergeBinary(),
			Description: "Required for muxing subtitle tracks",
			VersionArgs: []string{"--version"},
		})
	}
	return requirements
}

// CheckSystemDeps evaluates the external tools needed by cfg.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(ctx, Requirements(cfg))
}

// summarizeLLMError produces a human-readable summary for LLM health check failures.
func summarizeLLMError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (LLM API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (LLM API unreachable)"
	}
	return err.Error()
}
