package tts

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"dubbing/internal/logging"
)

// Defaults for the shared request limiter and retry backoff.
const (
	DefaultRequests       = 3
	DefaultWindow         = 10 * time.Second
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryMaxDelay  = 64 * time.Second

	// UVXCommand launches the Python tooling.
	UVXCommand = "uvx"
	// Package is the PyPI distribution providing the synthesizer.
	Package = "edge-tts"

	ticksPerSecond = 1e7
)

// WordTiming is one spoken word and its position in the rendered audio, in
// seconds.
type WordTiming struct {
	Start float64
	End   float64
	Text  string
}

// Synthesizer renders text with a voice into outPath and reports word
// boundaries.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice, outPath string) ([]WordTiming, error)
}

// Runner executes a command with stdin and returns its stdout.
type Runner func(ctx context.Context, stdin string, name string, args ...string) ([]byte, error)

// Config captures the request budget.
type Config struct {
	// Requests are allowed per Window.
	Requests int
	Window   time.Duration
}

// Service is a Synthesizer backed by edge-tts.
type Service struct {
	limiter *rate.Limiter
	runner  Runner
	logger  *slog.Logger

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

// Option customizes the service.
type Option func(*Service)

// WithRunner replaces subprocess execution (for tests).
func WithRunner(runner Runner) Option {
	return func(s *Service) {
		s.runner = runner
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(s *Service) {
		s.sleeper = sleeper
	}
}

// WithRetryMaxAttempts caps attempts per request. Zero retries until the
// context ends.
func WithRetryMaxAttempts(attempts int) Option {
	return func(s *Service) {
		s.retryMaxAttempts = attempts
	}
}

// WithLogger attaches a logger for retry warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// New builds a Service.
func New(cfg Config, opts ...Option) *Service {
	if cfg.Requests <= 0 {
		cfg.Requests = DefaultRequests
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	s := &Service{
		limiter:        rate.NewLimiter(rate.Every(cfg.Window/time.Duration(cfg.Requests)), cfg.Requests),
		runner:         execRunner,
		retryBaseDelay: defaultRetryBaseDelay,
		retryMaxDelay:  defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "tts")
	return s
}

func execRunner(ctx context.Context, stdin string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	cmd.Stdin = strings.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// Synthesize implements Synthesizer.
func (s *Service) Synthesize(ctx context.Context, text, voice, outPath string) ([]WordTiming, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("synthesize: empty text")
	}
	logger := logging.WithContext(ctx, s.logger)
	for attempt := 1; ; attempt++ {
		words, err := s.synthesizeOnce(ctx, text, voice, outPath)
		if err == nil {
			logger.Debug("speech synthesized",
				logging.Int("text_runes", len([]rune(text))),
				logging.Int("words", len(words)),
				logging.String("audio_path", outPath),
			)
			return words, nil
		}
		if rmErr := os.Remove(outPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			logger.Debug("remove partial audio failed", logging.Error(rmErr))
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("synthesize: %w (last error: %v)", ctxErr, err)
		}
		if errors.Is(err, exec.ErrNotFound) || (s.retryMaxAttempts > 0 && attempt >= s.retryMaxAttempts) {
			return nil, fmt.Errorf("synthesize: failed after %d attempts: %w", attempt, err)
		}
		delay := s.backoffDelay(attempt)
		logging.WarnWithContext(logger, "speech synthesis failed; retrying", "tts_retry",
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.String("voice", voice),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "edge-tts needs network access to the speech service"),
			logging.String(logging.FieldImpact, "dubbing is delayed until the request succeeds"),
		)
		if err := s.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func (s *Service) synthesizeOnce(ctx context.Context, text, voice, outPath string) ([]WordTiming, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	args := []string{"--with", Package, "python", "-c", streamScript, voice, outPath}
	out, err := s.runner(ctx, text, UVXCommand, args...)
	if err != nil {
		return nil, err
	}
	words, err := parseBoundaries(out)
	if err != nil {
		return nil, err
	}
	if len(words) == 0 {
		return nil, errors.New("no word boundaries received")
	}
	if info, err := os.Stat(outPath); err != nil || info.Size() == 0 {
		return nil, fmt.Errorf("no audio written to %s", outPath)
	}
	return words, nil
}

type boundary struct {
	Offset   int64  `json:"offset"`
	Duration int64  `json:"duration"`
	Text     string `json:"text"`
}

// parseBoundaries decodes one JSON boundary per line. Offsets are in
// 100-nanosecond ticks; texts arrive HTML-escaped.
func parseBoundaries(out []byte) ([]WordTiming, error) {
	var words []WordTiming
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var b boundary
		if err := json.Unmarshal(line, &b); err != nil {
			return nil, fmt.Errorf("parse word boundary: %w", err)
		}
		words = append(words, WordTiming{
			Start: float64(b.Offset) / ticksPerSecond,
			End:   float64(b.Offset+b.Duration) / ticksPerSecond,
			Text:  html.UnescapeString(b.Text),
		})
	}
	return words, scanner.Err()
}

func (s *Service) backoffDelay(attempt int) time.Duration {
	delay := s.retryBaseDelay
	for i := 1; i < attempt; i++ {
		if delay > s.retryMaxDelay/2 {
			return s.retryMaxDelay
		}
		delay *= 2
	}
	return min(delay, s.retryMaxDelay)
}

func (s *Service) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	if s.sleeper != nil {
		s.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
