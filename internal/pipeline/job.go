package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	langpkg "dubbing/internal/language"
	"dubbing/internal/ledger"
	"dubbing/internal/logging"
	"dubbing/internal/services"
	"dubbing/internal/textutil"
	"dubbing/internal/timeline"
	"dubbing/internal/transcript"
)

// sentenceThreshold is the share of sentence-terminated lines above which
// a track is reflowed by sentence rather than by length.
const sentenceThreshold = 0.8

// job carries one file through its stages.
type job struct {
	r       *Runner
	task    Task
	logger  *slog.Logger
	started time.Time

	// base is the output path without extension; artifacts append a suffix.
	base    string
	workDir string

	sourceSRT  string
	sourceLang string
	outputs    []string
}

func (r *Runner) newJob(ctx context.Context, task Task) *job {
	input := task.Input()
	return &job{
		r:          r,
		task:       task,
		logger:     logging.WithContext(ctx, r.logger),
		started:    r.now(),
		base:       filepath.Join(r.cfg.OutputDirFor(input), task.Name),
		workDir:    filepath.Join(r.cfg.Paths.WorkDir, workDirName(input)),
		sourceSRT:  task.Subtitle,
		sourceLang: r.cfg.ASR.Language,
	}
}

// workDirName is stable per input path so reruns find cached speech.
func workDirName(input string) string {
	abs, err := filepath.Abs(input)
	if err != nil {
		abs = input
	}
	sum := sha256.Sum256([]byte(abs))
	return textutil.SanitizeToken(strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))) + "-" + hex.EncodeToString(sum[:4])
}

func (j *job) artifact(suffix string) string {
	return j.base + suffix
}

func (j *job) keep() bool {
	return j.r.cfg.Workflow.KeepIntermediate
}

func (j *job) stageLogger(ctx context.Context, stage string) (context.Context, *slog.Logger) {
	ctx = services.WithStage(ctx, stage)
	return ctx, logging.WithContext(ctx, j.r.logger)
}

// separator joins words of lang when lines are merged.
func separator(lang string) string {
	if langpkg.SpaceDelimited(lang) {
		return " "
	}
	return ""
}

// reflow merges fragmentary lines: by sentence when most lines already end
// one, otherwise by length.
func reflow(tl *timeline.Timeline, lang string, minSentenceLen int, logger *slog.Logger) *timeline.Timeline {
	percent := tl.SentencesPercent(timeline.DefaultPunctuation)
	if percent > sentenceThreshold {
		logger.Debug("reflow strategy", logging.Args(logging.DecisionAttrs("reflow", "sentences",
			fmt.Sprintf("%.0f%% of lines end a sentence", percent*100))...)...)
		return tl.MergeSentences(timeline.DefaultPunctuation, timeline.DefaultMergeInterval, minSentenceLen)
	}
	logger.Debug("reflow strategy", logging.Args(logging.DecisionAttrs("reflow", "length",
		fmt.Sprintf("only %.0f%% of lines end a sentence", percent*100))...)...)
	return tl.MergeByLength(timeline.DefaultMergeInterval, timeline.DefaultMaxMergeLength, separator(lang))
}

func (j *job) writeTimeline(tl *timeline.Timeline, suffix string, final bool) (string, error) {
	path := j.artifact(suffix)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("ensure output dir: %w", err)
	}
	if err := tl.WriteFile(path); err != nil {
		return "", err
	}
	if final {
		j.outputs = append(j.outputs, path)
	}
	return path, nil
}

func (j *job) dropOutput(path string) {
	j.outputs = slices.DeleteFunc(j.outputs, func(p string) bool { return p == path })
}

// probe rejects videos that cannot be dubbed before any stage runs: every
// video needs a picture, and transcription needs an audio stream.
func (j *job) probe(ctx context.Context) error {
	if j.task.Video == "" || j.r.deps.Probe == nil {
		return nil
	}
	info, err := j.r.deps.Probe(ctx, j.task.Video)
	if err != nil {
		return services.Wrap(services.ErrValidation, StageProbe, "inspect", "ffprobe could not read the video", err)
	}
	switch {
	case info.VideoStreamCount() == 0:
		return services.Wrap(services.ErrValidation, StageProbe, "inspect", "no video stream", nil)
	case j.task.NeedsASR() && info.AudioStreamCount() == 0:
		return services.Wrap(services.ErrValidation, StageProbe, "inspect", "no audio stream to transcribe", nil)
	}
	j.logger.Debug("video inspected",
		logging.Int("audio_streams", info.AudioStreamCount()),
		logging.Seconds("duration_seconds", info.DurationSeconds()),
	)
	return nil
}

// transcribe produces the source subtitle track from the video. Tasks that
// came with a subtitle skip it.
func (j *job) transcribe(ctx context.Context) error {
	if !j.task.NeedsASR() {
		return nil
	}
	ctx, logger := j.stageLogger(ctx, StageASR)
	if !j.r.cfg.ASR.Enabled {
		return services.Wrap(services.ErrConfiguration, StageASR, "transcribe", "transcription is disabled and no subtitle was given", nil)
	}
	if j.r.deps.Transcriber == nil {
		return services.Wrap(services.ErrConfiguration, StageASR, "transcribe", "transcription is not configured", nil)
	}
	start := j.r.now()
	payload, err := j.r.deps.Transcriber.Transcribe(ctx, j.task.Video, filepath.Join(j.workDir, "asr"))
	if err != nil {
		return services.Wrap(services.ErrExternalTool, StageASR, "transcribe", "whisperx failed", err)
	}
	if j.sourceLang == "" {
		j.sourceLang = payload.Language
	}
	segments, err := transcript.FromWhisperX(payload)
	if err != nil {
		return services.Wrap(services.ErrValidation, StageASR, "parse transcript", "", err)
	}
	if j.r.deps.Transcriber.WordTimed() {
		segments = transcript.Split(segments, separator(j.sourceLang))
	}
	tl := transcript.ToTimeline(segments)
	if tl.Len() == 0 {
		return services.Wrap(services.ErrValidation, StageASR, "transcribe", "no speech recognized", nil)
	}
	path, err := j.writeTimeline(tl, ".asr.srt", true)
	if err != nil {
		return services.Wrap(services.ErrTransient, StageASR, "write transcript", "", err)
	}
	j.sourceSRT = path
	logger.Info("transcription complete",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int("lines", tl.Len()),
		logging.String("language", j.sourceLang),
		logging.String("output", path),
		logging.Duration("elapsed", j.r.now().Sub(start)),
	)
	return nil
}

// finish runs every stage after transcription.
func (j *job) finish(ctx context.Context) FileOutcome {
	translated, bilingual, err := j.translate(ctx)
	if err != nil {
		return j.fail(StageTranslate, err)
	}
	video, err := j.synthesize(ctx, translated)
	if err != nil {
		return j.fail(StageTTS, err)
	}
	if err := j.mux(ctx, video, translated, bilingual); err != nil {
		return j.fail(StageSubtitles, err)
	}
	j.cleanup()

	outcome := FileOutcome{
		Name:     j.task.Name,
		Input:    j.task.Input(),
		Status:   ledger.StatusSucceeded,
		Outputs:  j.outputs,
		Duration: j.r.now().Sub(j.started),
	}
	j.logger.Info("file complete",
		logging.String(logging.FieldEventType, "file_complete"),
		logging.Int("outputs", len(outcome.Outputs)),
		logging.Duration("elapsed", outcome.Duration),
	)
	return outcome
}

func (j *job) fail(stage string, err error) FileOutcome {
	outcome := FileOutcome{
		Name:     j.task.Name,
		Input:    j.task.Input(),
		Stage:    stage,
		Status:   services.FailureStatus(err),
		Err:      err,
		Outputs:  j.outputs,
		Duration: j.r.now().Sub(j.started),
	}
	logging.ErrorWithContext(j.logger, "file failed", "file_failed",
		logging.String(logging.FieldStage, stage),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "fix the cause and rerun; cached speech is reused"),
	)
	return outcome
}

// cleanup removes the work directory of a finished file unless
// intermediates are kept.
func (j *job) cleanup() {
	if j.keep() {
		return
	}
	if err := os.RemoveAll(j.workDir); err != nil {
		logging.WarnWithContext(j.logger, "work directory cleanup failed", "cleanup_failed",
			logging.String("work_dir", j.workDir),
			logging.Error(err),
			logging.String(logging.FieldImpact, "intermediate files remain on disk"),
		)
	}
}
