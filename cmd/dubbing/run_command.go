package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"dubbing/internal/config"
	"dubbing/internal/fileutil"
	"dubbing/internal/ledger"
	"dubbing/internal/logging"
	"dubbing/internal/media/ffmpeg"
	"dubbing/internal/media/ffprobe"
	"dubbing/internal/mux"
	"dubbing/internal/notifications"
	"dubbing/internal/pipeline"
	"dubbing/internal/preflight"
	"dubbing/internal/services/llm"
	"dubbing/internal/services/tts"
	"dubbing/internal/services/whisperx"
	"dubbing/internal/translate"
)

// llmMessageLog is the file under paths.log_dir that receives prompts and
// replies when logging.llm_messages is set.
const llmMessageLog = "llm.msg.log"

type runFlags struct {
	videos        []string
	subtitles     []string
	outputDir     string
	targetLang    string
	voice         string
	sourceLang    string
	noTranslate   bool
	noTTS         bool
	noMux         bool
	keep          bool
	parallel      int
	skipPreflight bool
	checkLLM      bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Dub videos or subtitle files",
		Long: `Run transcribes each video (unless a subtitle is paired with it),
translates the subtitles, voices the translation and muxes the results.

Videos only:     every video is transcribed.
Subtitles only:  subtitles are translated and voiced without a video.
Both:            counts must match; files pair up in the order given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, cfg); err != nil {
				return err
			}
			return runDubbing(cmd.Context(), cmd.OutOrStdout(), cfg, flags)
		},
	}

	bindRunFlags(cmd, &flags)
	return cmd
}

func bindRunFlags(cmd *cobra.Command, flags *runFlags) {
	f := cmd.Flags()
	f.StringSliceVarP(&flags.videos, "videos", "v", nil, "Video files or glob patterns")
	f.StringSliceVarP(&flags.subtitles, "subtitles", "s", nil, "SRT files or glob patterns")
	f.StringVarP(&flags.outputDir, "output-dir", "o", "", "Directory for outputs (default: next to each input)")
	f.StringVarP(&flags.targetLang, "target-lang", "t", "", "Translation target language")
	f.StringVar(&flags.voice, "voice", "", "Speech synthesis voice")
	f.StringVar(&flags.sourceLang, "source-lang", "", "Spoken language of the videos (default: detect)")
	f.BoolVar(&flags.noTranslate, "no-translate", false, "Skip translation")
	f.BoolVar(&flags.noTTS, "no-tts", false, "Skip speech synthesis")
	f.BoolVar(&flags.noMux, "no-mux", false, "Skip muxing subtitles into the video")
	f.BoolVar(&flags.keep, "keep", false, "Keep intermediate artifacts")
	f.IntVarP(&flags.parallel, "parallel", "j", 0, "Files processed in parallel after transcription")
	f.BoolVar(&flags.skipPreflight, "skip-preflight", false, "Skip dependency checks")
	f.BoolVar(&flags.checkLLM, "check-llm", false, "Verify the translation API before starting")
}

// apply overrides configuration with the flags the user set and
// revalidates the result.
func (f runFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	changed := cmd.Flags().Changed
	if changed("output-dir") {
		dir, err := config.ExpandPath(f.outputDir)
		if err != nil {
			return fmt.Errorf("resolve output dir: %w", err)
		}
		cfg.Paths.OutputDir = dir
	}
	if changed("target-lang") {
		cfg.Translate.TargetLang = f.targetLang
	}
	if changed("voice") {
		cfg.TTS.Voice = f.voice
	}
	if changed("source-lang") {
		cfg.ASR.Language = f.sourceLang
	}
	if f.noTranslate {
		cfg.Translate.Enabled = false
	}
	if f.noTTS {
		cfg.TTS.Enabled = false
	}
	if f.noMux {
		cfg.Subtitles.Mux = false
	}
	if changed("keep") {
		cfg.Workflow.KeepIntermediate = f.keep
	}
	if changed("parallel") {
		cfg.Workflow.MaxParallelFiles = f.parallel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	return cfg.EnsureDirectories()
}

// tasks expands the input patterns and pairs them.
func (f runFlags) tasks() ([]pipeline.Task, error) {
	var videos, subtitles []string
	var err error
	if len(f.videos) > 0 {
		if videos, err = fileutil.Expand(f.videos); err != nil {
			return nil, fmt.Errorf("videos: %w", err)
		}
	}
	if len(f.subtitles) > 0 {
		if subtitles, err = fileutil.Expand(f.subtitles); err != nil {
			return nil, fmt.Errorf("subtitles: %w", err)
		}
	}
	return pipeline.BuildTasks(videos, subtitles)
}

func runDubbing(ctx context.Context, out io.Writer, cfg *config.Config, flags runFlags) error {
	tasks, err := flags.tasks()
	if err != nil {
		return err
	}

	if !flags.skipPreflight {
		results := preflight.RunAll(ctx, cfg, preflight.Options{CheckLLM: flags.checkLLM})
		if err := preflight.Err(results); err != nil {
			return fmt.Errorf("%w (run `dubbing check` for details)", err)
		}
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	store, err := ledger.Open(cfg.Paths.StateDir)
	if err != nil {
		return err
	}
	defer store.Close()
	if days := cfg.LLM.CacheMaxAgeDays; days > 0 {
		if pruned, err := store.PruneTranslations(ctx, time.Duration(days)*24*time.Hour); err != nil {
			logger.Debug("translation cache prune failed", logging.Error(err))
		} else if pruned > 0 {
			logger.Debug("translation cache pruned", logging.Int64("entries", pruned))
		}
	}

	deps, closeDeps, err := buildDeps(cfg, store, logger)
	if err != nil {
		return err
	}
	defer closeDeps()

	report, err := pipeline.New(cfg, deps, logger).Run(ctx, tasks)
	if err != nil {
		return err
	}
	renderReport(out, report, shouldColorize(out))

	if failed := len(report.Failures()); failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(report.Files))
	}
	return ctx.Err()
}

// buildDeps constructs the collaborators for the enabled stages. The
// returned func releases anything that needs closing.
func buildDeps(cfg *config.Config, store *ledger.Store, logger *slog.Logger) (pipeline.Deps, func(), error) {
	closers := []func(){}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := pipeline.Deps{
		Probe: func(ctx context.Context, path string) (ffprobe.Result, error) {
			return ffprobe.Inspect(ctx, cfg.FFprobeBinary(), path)
		},
		Audio: ffmpeg.New(cfg.FFmpegBinary(),
			ffmpeg.WithLogger(logger),
			ffmpeg.WithMaxSpeedWarn(cfg.TTS.MaxSpeedWarn),
		),
		Muxer:  mux.NewMuxer(cfg.MkvmergeBinary(), logger),
		Ledger: store,
	}
	if svc := notifications.NewService(cfg); notifications.Enabled(svc) {
		deps.Notifier = svc
	}

	if cfg.ASR.Enabled {
		deps.Transcriber = whisperx.NewService(whisperx.ConfigFromASR(cfg.ASR), cfg.FFmpegBinary())
	}

	if cfg.Translate.Enabled {
		opts := []llm.Option{llm.WithLogger(logger)}
		if cfg.Logging.LLMMessages {
			path := filepath.Join(cfg.Paths.LogDir, llmMessageLog)
			file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				return pipeline.Deps{}, closeAll, fmt.Errorf("open llm message log: %w", err)
			}
			closers = append(closers, func() { _ = file.Close() })
			opts = append(opts, llm.WithMessageLog(file))
		}
		client := llm.NewClient(preflight.LLMConfig(cfg.LLM), opts...)
		closers = append(closers, func() {
			prompt, completion := client.Usage()
			logger.Info("translation usage",
				logging.String("model", client.Model()),
				logging.Int64("prompt_tokens", prompt),
				logging.Int64("completion_tokens", completion),
			)
		})
		deps.Translator = client
		if cfg.LLM.CacheResponses {
			deps.Translator = translate.NewCachingTranslator(client, store, client.Model(), cfg.Translate.TargetLang, logger)
		}
	}

	if cfg.TTS.Enabled {
		deps.Synthesizer = tts.New(tts.Config{
			Requests: cfg.TTS.Requests,
			Window:   time.Duration(cfg.TTS.WindowSeconds * float64(time.Second)),
		}, tts.WithLogger(logger))
	}
	return deps, closeAll, nil
}
