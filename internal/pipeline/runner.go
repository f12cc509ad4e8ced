package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"dubbing/internal/config"
	"dubbing/internal/ledger"
	"dubbing/internal/logging"
	"dubbing/internal/media/ffmpeg"
	"dubbing/internal/media/ffprobe"
	"dubbing/internal/mux"
	"dubbing/internal/reconcile"
	"dubbing/internal/services"
	"dubbing/internal/services/tts"
	"dubbing/internal/services/whisperx"
	"dubbing/internal/translate"
	"dubbing/internal/workdir"
)

// Stage names used in logs, failures and the ledger.
const (
	StageProbe     = "probe"
	StageASR       = "asr"
	StageTranslate = "translate"
	StageTTS       = "tts"
	StageSubtitles = "subtitles"
)

// notifyTimeout bounds a single notification; the ntfy client has its own
// request timeout as well.
const notifyTimeout = 30 * time.Second

// ErrWorkDirBusy reports another run holding the work directory.
var ErrWorkDirBusy = workdir.ErrBusy

// Transcriber turns a video's speech into a WhisperX transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, source, workDir string) (whisperx.Payload, error)
	WordTimed() bool
}

// AudioTool converts, assembles and muxes audio.
type AudioTool interface {
	ConvertToWAV(ctx context.Context, input, output string) error
	Concat(ctx context.Context, segments []reconcile.Segment, workDir, output string) (ffmpeg.ConcatStats, error)
	AddAudioTrack(ctx context.Context, video, audio, output, title, language string) error
}

// Prober inspects a media file's streams.
type Prober func(ctx context.Context, path string) (ffprobe.Result, error)

// SubtitleMuxer embeds subtitle tracks into a video.
type SubtitleMuxer interface {
	Mux(ctx context.Context, req mux.Request) (mux.Result, error)
}

// RunRecorder persists run history.
type RunRecorder interface {
	BeginRun(ctx context.Context, id, optionsJSON string, files int) error
	RecordFile(ctx context.Context, result ledger.FileResult) error
	FinishRun(ctx context.Context, id string, status ledger.Status, failed int) error
}

// Notifier announces failures and run completion.
type Notifier interface {
	NotifyFileFailed(ctx context.Context, name, stage string, err error) error
	NotifyRunCompleted(ctx context.Context, succeeded, failed int, duration time.Duration) error
}

// Deps are the collaborators a Runner drives. Collaborators for disabled
// stages may be nil.
type Deps struct {
	Probe       Prober
	Transcriber Transcriber
	Translator  translate.Translator
	Synthesizer tts.Synthesizer
	Audio       AudioTool
	Muxer       SubtitleMuxer
	Ledger      RunRecorder
	Notifier    Notifier
}

// Runner executes the dubbing workflow.
type Runner struct {
	cfg    *config.Config
	deps   Deps
	logger *slog.Logger
	now    func() time.Time
}

// New constructs a Runner.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) *Runner {
	return &Runner{
		cfg:    cfg,
		deps:   deps,
		logger: logging.NewComponentLogger(logger, "pipeline"),
		now:    time.Now,
	}
}

// runOptions is the configuration snapshot stored with each run.
type runOptions struct {
	TargetLang       string `json:"target_lang"`
	Voice            string `json:"voice"`
	Translate        bool   `json:"translate"`
	TTS              bool   `json:"tts"`
	Mux              bool   `json:"mux"`
	MaxParallelFiles int    `json:"max_parallel_files"`
}

// Run processes tasks and reports every file's outcome. The returned error
// is reserved for problems that prevent the run from starting at all.
func (r *Runner) Run(ctx context.Context, tasks []Task) (Report, error) {
	report := Report{RunID: uuid.NewString(), StartedAt: r.now()}
	ctx = services.WithRunID(ctx, report.RunID)
	logger := logging.WithContext(ctx, r.logger)

	unlock, err := workdir.Lock(r.cfg.Paths.WorkDir)
	if err != nil {
		return report, err
	}
	defer unlock()
	if days := r.cfg.Workflow.WorkRetentionDays; days > 0 {
		workdir.Prune(ctx, r.cfg.Paths.WorkDir, time.Duration(days)*24*time.Hour, r.logger)
	}

	r.beginRun(ctx, report.RunID, len(tasks))
	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_started"),
		logging.Int("files", len(tasks)),
	)

	report.Files = make([]FileOutcome, len(tasks))
	var recordMu sync.Mutex
	record := func(i int, outcome FileOutcome) {
		report.Files[i] = outcome
		recordMu.Lock()
		defer recordMu.Unlock()
		r.recordFile(ctx, report.RunID, outcome)
		if outcome.Failed() {
			r.notify("file failure", func(nctx context.Context, n Notifier) error {
				return n.NotifyFileFailed(nctx, outcome.Name, outcome.Stage, outcome.Err)
			})
		}
	}

	gate := semaphore.NewWeighted(int64(max(r.cfg.Workflow.MaxParallelFiles, 1)))
	var g errgroup.Group
	for i, task := range tasks {
		if ctx.Err() != nil {
			record(i, FileOutcome{Name: task.Name, Input: task.Input(), Status: ledger.StatusFailed, Err: ctx.Err()})
			continue
		}
		fileCtx := services.WithFile(ctx, task.Name)
		job := r.newJob(fileCtx, task)
		if err := job.probe(fileCtx); err != nil {
			record(i, job.fail(StageProbe, err))
			continue
		}

		// Transcription runs inline so only one file holds the GPU.
		if err := job.transcribe(fileCtx); err != nil {
			record(i, job.fail(StageASR, err))
			continue
		}
		g.Go(func() error {
			if err := gate.Acquire(fileCtx, 1); err != nil {
				record(i, job.fail(StageTranslate, err))
				return nil
			}
			defer gate.Release(1)
			record(i, job.finish(fileCtx))
			return nil
		})
	}
	_ = g.Wait()

	report.FinishedAt = r.now()
	status := report.Status()
	r.finishRun(ctx, report.RunID, status, len(report.Failures()))
	logger.Info("run finished",
		logging.String(logging.FieldEventType, "run_finished"),
		logging.String("status", string(status)),
		logging.Int("failed", len(report.Failures())),
		logging.Duration("elapsed", report.Duration()),
	)
	failed := len(report.Failures())
	r.notify("run summary", func(nctx context.Context, n Notifier) error {
		return n.NotifyRunCompleted(nctx, len(report.Files)-failed, failed, report.Duration())
	})
	return report, nil
}

// notify delivers a notification on a context detached from the run so a
// cancelled run still reports how far it got.
func (r *Runner) notify(what string, send func(context.Context, Notifier) error) {
	if r.deps.Notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := send(ctx, r.deps.Notifier); err != nil {
		logging.WarnWithContext(r.logger, "notification failed", "notification_failed",
			logging.String("notification", what),
			logging.Error(err),
			logging.String(logging.FieldImpact, "run outcome was not announced"),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		)
	}
}

func (r *Runner) beginRun(ctx context.Context, id string, files int) {
	if r.deps.Ledger == nil {
		return
	}
	opts, _ := json.Marshal(runOptions{
		TargetLang:       r.cfg.Translate.TargetLang,
		Voice:            r.cfg.TTS.Voice,
		Translate:        r.cfg.Translate.Enabled,
		TTS:              r.cfg.TTS.Enabled,
		Mux:              r.cfg.Subtitles.Mux,
		MaxParallelFiles: r.cfg.Workflow.MaxParallelFiles,
	})
	if err := r.deps.Ledger.BeginRun(ctx, id, string(opts), files); err != nil {
		r.ledgerWarning(err, "begin run")
	}
}

func (r *Runner) recordFile(ctx context.Context, runID string, outcome FileOutcome) {
	if r.deps.Ledger == nil {
		return
	}
	result := ledger.FileResult{
		RunID:    runID,
		Name:     outcome.Name,
		Stage:    outcome.Stage,
		Status:   outcome.Status,
		Outputs:  outcome.Outputs,
		Duration: outcome.Duration,
	}
	if outcome.Err != nil {
		result.Error = outcome.Err.Error()
	}
	if err := r.deps.Ledger.RecordFile(ctx, result); err != nil {
		r.ledgerWarning(err, "record file")
	}
}

func (r *Runner) finishRun(ctx context.Context, id string, status ledger.Status, failed int) {
	if r.deps.Ledger == nil {
		return
	}
	// The run row is closed even when the run context was cancelled.
	if err := r.deps.Ledger.FinishRun(context.WithoutCancel(ctx), id, status, failed); err != nil {
		r.ledgerWarning(err, "finish run")
	}
}

func (r *Runner) ledgerWarning(err error, op string) {
	logging.WarnWithContext(r.logger, "run ledger write failed", "ledger_write_failed",
		logging.String("operation", op),
		logging.Error(err),
		logging.String(logging.FieldImpact, "run history is incomplete"),
		logging.String(logging.FieldErrorHint, "check paths.state_dir is writable"),
	)
}
