package mux

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	langpkg "dubbing/internal/language"
	"dubbing/internal/logging"
)

// Command is the default mkvmerge executable name.
const Command = "mkvmerge"

// Track is one subtitle file to embed.
type Track struct {
	Path     string
	Title    string
	Language string // any name language.ToISO3 understands
}

// Request describes the inputs for subtitle muxing.
type Request struct {
	Video             string
	Output            string
	Tracks            []Track
	StripExistingSubs bool
}

// Result reports the outcome of subtitle muxing.
type Result struct {
	OutputPath string
	Tracks     int
}

// Runner executes a command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Muxer embeds SRT subtitles into MKV containers using mkvmerge.
type Muxer struct {
	binary string
	logger *slog.Logger
	run    Runner
}

// NewMuxer constructs a subtitle muxer for binary (mkvmerge when empty).
func NewMuxer(binary string, logger *slog.Logger) *Muxer {
	if strings.TrimSpace(binary) == "" {
		binary = Command
	}
	return &Muxer{
		binary: binary,
		logger: logging.NewComponentLogger(logger, "muxer"),
		run:    defaultRunner,
	}
}

// WithRunner allows injecting a custom command runner for tests.
func (m *Muxer) WithRunner(r Runner) *Muxer {
	if r != nil {
		m.run = r
	}
	return m
}

// Mux writes req.Output as the video plus every track. mkvmerge writes to a
// temporary file beside the output which is renamed into place on success.
func (m *Muxer) Mux(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Video) == "" {
		return Result{}, fmt.Errorf("video path is required")
	}
	if strings.TrimSpace(req.Output) == "" {
		return Result{}, fmt.Errorf("output path is required")
	}
	if len(req.Tracks) == 0 {
		return Result{}, fmt.Errorf("at least one subtitle track is required")
	}
	if _, err := os.Stat(req.Video); err != nil {
		return Result{}, fmt.Errorf("source video not found: %w", err)
	}
	for _, track := range req.Tracks {
		if _, err := os.Stat(track.Path); err != nil {
			return Result{}, fmt.Errorf("subtitle file not found %q: %w", track.Path, err)
		}
	}

	tmpPath := filepath.Join(filepath.Dir(req.Output), ".mux-"+filepath.Base(req.Output)+".tmp")
	args := BuildArgs(req, tmpPath)

	m.logger.Debug("executing mkvmerge",
		logging.String("video", req.Video),
		logging.String("output", req.Output),
		logging.Int("track_count", len(req.Tracks)),
		logging.Bool("strip_existing", req.StripExistingSubs),
	)

	if output, err := m.run(ctx, m.binary, args...); err != nil {
		_ = os.Remove(tmpPath)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return Result{}, fmt.Errorf("mkvmerge failed: %w: %s", err, strings.TrimSpace(string(output)))
	}
	if _, err := os.Stat(tmpPath); err != nil {
		return Result{}, fmt.Errorf("mkvmerge did not produce output file: %w", err)
	}
	if err := os.Rename(tmpPath, req.Output); err != nil {
		_ = os.Remove(tmpPath)
		return Result{}, fmt.Errorf("move muxed output into place: %w", err)
	}

	m.logger.Info("subtitles muxed",
		logging.String(logging.FieldEventType, "subtitle_mux_complete"),
		logging.String("output", req.Output),
		logging.Int("tracks_added", len(req.Tracks)),
	)
	return Result{OutputPath: req.Output, Tracks: len(req.Tracks)}, nil
}

// BuildArgs constructs the mkvmerge arguments writing to outputPath.
func BuildArgs(req Request, outputPath string) []string {
	args := []string{"-o", outputPath}
	if req.StripExistingSubs {
		args = append(args, "-S")
	}
	args = append(args, req.Video)

	for i, track := range req.Tracks {
		// Options apply to track 0 of the file that follows them.
		args = append(args, "--language", "0:"+langpkg.ToISO3(track.Language))
		title := strings.TrimSpace(track.Title)
		if title == "" {
			title = langpkg.DisplayName(track.Language)
		}
		args = append(args, "--track-name", "0:"+title)
		if i == 0 {
			args = append(args, "--default-track", "0:yes")
		} else {
			args = append(args, "--default-track", "0:no")
		}
		args = append(args, track.Path)
	}
	return args
}

func defaultRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	return cmd.CombinedOutput()
}
