package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"dubbing/internal/logging"
	"dubbing/internal/media/wavio"
	"dubbing/internal/reconcile"
)

// Command is the default ffmpeg executable name.
const Command = "ffmpeg"

// DefaultMaxSpeedWarn is the speed-up factor above which a warning is logged.
const DefaultMaxSpeedWarn = 1.5

// Output audio format shared by every intermediate WAV.
const (
	SampleRate = wavio.DefaultSampleRate
	Channels   = 1
	Codec      = "pcm_s16le"
)

// Runner executes a command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Tool runs ffmpeg.
type Tool struct {
	binary       string
	maxSpeedWarn float64
	logger       *slog.Logger
	run          Runner
}

// Option configures a Tool.
type Option func(*Tool)

// WithRunner replaces command execution (for testing).
func WithRunner(run Runner) Option {
	return func(t *Tool) {
		if run != nil {
			t.run = run
		}
	}
}

// WithLogger sets the logger for speed warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tool) {
		t.logger = logging.NewComponentLogger(logger, "ffmpeg")
	}
}

// WithMaxSpeedWarn sets the speed-up factor above which clips are reported.
func WithMaxSpeedWarn(factor float64) Option {
	return func(t *Tool) {
		if factor > 0 {
			t.maxSpeedWarn = factor
		}
	}
}

// New constructs a Tool for binary (ffmpeg when empty).
func New(binary string, opts ...Option) *Tool {
	if strings.TrimSpace(binary) == "" {
		binary = Command
	}
	t := &Tool{
		binary:       binary,
		maxSpeedWarn: DefaultMaxSpeedWarn,
		logger:       logging.NewComponentLogger(nil, "ffmpeg"),
		run:          execRunner,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	return cmd.CombinedOutput()
}

func (t *Tool) exec(ctx context.Context, args ...string) error {
	output, err := t.run(ctx, t.binary, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%s: %w: %s", t.binary, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// ConvertToWAV re-encodes input as mono 16-bit PCM at SampleRate.
func (t *Tool) ConvertToWAV(ctx context.Context, input, output string) error {
	err := t.exec(ctx,
		"-y", "-v", "warning",
		"-i", input,
		"-ar", strconv.Itoa(SampleRate),
		"-ac", strconv.Itoa(Channels),
		"-c:a", Codec,
		output,
	)
	if err != nil {
		return fmt.Errorf("convert %s to wav: %w", filepath.Base(input), err)
	}
	return nil
}

// AtempoChain expresses speed as a chain of atempo filters, each within
// the [0.5, 2.0] range the filter accepts.
func AtempoChain(speed float64) string {
	var parts []string
	for speed > 2.0 {
		parts = append(parts, "atempo=2.0")
		speed /= 2.0
	}
	for speed < 0.5 {
		parts = append(parts, "atempo=0.5")
		speed /= 0.5
	}
	parts = append(parts, "atempo="+strconv.FormatFloat(speed, 'f', -1, 64))
	return strings.Join(parts, ",")
}

// SpeedFactor returns the factor that fits actual seconds into target,
// rounded up to the next hundredth. Ratios within float error of a
// hundredth are not bumped past it.
func SpeedFactor(actual, target float64) float64 {
	return math.Ceil(actual/target*100-1e-9) / 100
}

// ChangeSpeed time-stretches input by speed without changing pitch.
func (t *Tool) ChangeSpeed(ctx context.Context, input, output string, speed float64) error {
	if speed <= 0 {
		return fmt.Errorf("change speed: invalid factor %v", speed)
	}
	err := t.exec(ctx,
		"-y", "-v", "warning",
		"-i", input,
		"-filter:a", AtempoChain(speed),
		"-ar", strconv.Itoa(SampleRate),
		"-ac", strconv.Itoa(Channels),
		"-c:a", Codec,
		output,
	)
	if err != nil {
		return fmt.Errorf("change speed of %s: %w", filepath.Base(input), err)
	}
	return nil
}

// ConcatStats summarizes an assembled track.
type ConcatStats struct {
	Segments  int
	SpedUp    int
	MaxSpeed  float64
	Silence   float64
	Duration  float64
	Overspeed int
}

// Concat assembles segments into output. Silence fills the space between
// the running cursor and each segment's target start; clips longer than
// their target are sped up to fit. Intermediate files go to workDir.
func (t *Tool) Concat(ctx context.Context, segments []reconcile.Segment, workDir, output string) (ConcatStats, error) {
	var stats ConcatStats
	if len(segments) == 0 {
		return stats, errors.New("concat: no segments")
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return stats, fmt.Errorf("concat: ensure work dir: %w", err)
	}

	var parts []string
	cursor := 0.0
	for i, seg := range segments {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if gap := math.Floor((seg.TargetStart-cursor)*100) / 100; gap > 0 {
			path := filepath.Join(workDir, fmt.Sprintf("silence_%04d.wav", i))
			if err := wavio.WriteSilence(path, gap, SampleRate); err != nil {
				return stats, fmt.Errorf("concat: silence before segment %d: %w", i+1, err)
			}
			parts = append(parts, path)
			cursor += gap
			stats.Silence += gap
		}

		clip, length := seg.Source, seg.ActualDuration
		if seg.TargetDuration > 0 && seg.ActualDuration > seg.TargetDuration {
			speed := SpeedFactor(seg.ActualDuration, seg.TargetDuration)
			if speed > t.maxSpeedWarn {
				stats.Overspeed++
				logging.WarnWithContext(t.logger, "speech sped up beyond comfortable rate", "tts_overspeed",
					logging.Int("segment", i+1),
					logging.Float64("speed", speed),
					logging.Seconds("target", seg.TargetDuration),
					logging.Seconds("actual", seg.ActualDuration),
					logging.String(logging.FieldImpact, "dubbed line may be hard to follow"),
					logging.Alert("review"),
					logging.String(logging.FieldErrorHint, "shorten the translation or raise tts.max_speed_warn"),
				)
			}
			sped := filepath.Join(workDir, fmt.Sprintf("speed_%04d.wav", i))
			if err := t.ChangeSpeed(ctx, seg.Source, sped, speed); err != nil {
				return stats, err
			}
			measured, err := wavio.Duration(sped)
			if err != nil {
				return stats, fmt.Errorf("concat: measure segment %d: %w", i+1, err)
			}
			clip, length = sped, measured
			stats.SpedUp++
			stats.MaxSpeed = max(stats.MaxSpeed, speed)
		}
		parts = append(parts, clip)
		cursor += length
	}
	stats.Segments = len(segments)
	stats.Duration = cursor

	listPath := filepath.Join(workDir, "concat.txt")
	if err := writeConcatList(listPath, parts); err != nil {
		return stats, err
	}
	// The output codec follows the output extension.
	if err := t.exec(ctx, "-y", "-v", "warning", "-f", "concat", "-safe", "0", "-i", listPath, output); err != nil {
		return stats, fmt.Errorf("concat audio: %w", err)
	}
	return stats, nil
}

// writeConcatList writes an ffmpeg concat demuxer script. Single quotes in
// paths are closed, escaped and reopened.
func writeConcatList(path string, files []string) error {
	var b strings.Builder
	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			return fmt.Errorf("concat list: %w", err)
		}
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(abs, "'", `'\''`))
		b.WriteString("'\n")
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	return nil
}

// AddAudioTrack writes output with audio as the first, default audio
// stream ahead of the video's original audio. Video streams are copied;
// the new track is AAC so the result fits an MP4 container, which is also
// why source subtitle streams are left out.
func (t *Tool) AddAudioTrack(ctx context.Context, video, audio, output, title, language string) error {
	args := []string{
		"-y", "-v", "warning",
		"-i", video,
		"-i", audio,
		"-map", "0:v",
		"-map", "1:a",
		"-map", "0:a?",
		"-c", "copy",
		"-c:a:0", "aac",
		"-metadata:s:a:0", "title=" + title,
		"-disposition:a", "0",
		"-disposition:a:0", "default",
	}
	if language != "" {
		args = append(args, "-metadata:s:a:0", "language="+language)
	}
	args = append(args, output)
	if err := t.exec(ctx, args...); err != nil {
		return fmt.Errorf("add audio track to %s: %w", filepath.Base(video), err)
	}
	return nil
}
