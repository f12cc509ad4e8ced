package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"dubbing/internal/fileutil"
	langpkg "dubbing/internal/language"
	"dubbing/internal/logging"
	"dubbing/internal/media/wavio"
	"dubbing/internal/reconcile"
	"dubbing/internal/services"
	"dubbing/internal/timeline"
)

// speechBatch is a run of consecutive lines synthesized in one request.
type speechBatch struct {
	first  int
	lines  []string
	prefix string
}

// planSpeech groups lines into batches of at most maxChars runes. A line
// longer than maxChars gets a batch of its own. The prefix names the
// batch's files and changes whenever its text or voice does, so cached
// clips are only reused for identical requests.
func planSpeech(tl *timeline.Timeline, maxChars int, voice string) []speechBatch {
	var batches []speechBatch
	flush := func(first int, lines []string) {
		if len(lines) == 0 {
			return
		}
		sum := sha256.Sum256([]byte(voice + "\x00" + strings.Join(lines, "\n")))
		batches = append(batches, speechBatch{
			first:  first,
			lines:  lines,
			prefix: fmt.Sprintf("batch%04d_%s", first+1, hex.EncodeToString(sum[:5])),
		})
	}
	start, length := 0, 0
	var lines []string
	for i, e := range tl.Entries {
		n := utf8.RuneCountInString(e.Text)
		if len(lines) > 0 && length+n > maxChars {
			flush(start, lines)
			start, length, lines = i, 0, nil
		}
		lines = append(lines, e.Text)
		length += n
	}
	flush(start, lines)
	return batches
}

// synthesize voices the translated track, assembles it onto the subtitle
// timeline and, for video tasks, adds it as a new audio track. It returns
// the video later stages should use.
func (j *job) synthesize(ctx context.Context, translatedSRT string) (string, error) {
	cfg := j.r.cfg
	if !cfg.TTS.Enabled {
		return j.task.Video, nil
	}
	ctx, logger := j.stageLogger(ctx, StageTTS)
	if j.r.deps.Synthesizer == nil || j.r.deps.Audio == nil {
		return "", services.Wrap(services.ErrConfiguration, StageTTS, "synthesize", "speech synthesis is not configured", nil)
	}
	start := j.r.now()
	targetLang := cfg.Translate.TargetLang
	if !cfg.Translate.Enabled {
		targetLang = j.sourceLang
	}

	tl, err := timeline.ReadFile(translatedSRT)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, StageTTS, "read subtitles", translatedSRT, err)
	}
	tl.CorrectTime(false)
	tl = reflow(tl, targetLang, 0, logger)
	if tl.Len() == 0 {
		return "", services.Wrap(services.ErrValidation, StageTTS, "synthesize", "no lines to voice", nil)
	}
	if j.keep() {
		if _, err := j.writeTimeline(tl, ".tts.srt", false); err != nil {
			return "", services.Wrap(services.ErrTransient, StageTTS, "write speech timeline", "", err)
		}
	}

	speechDir := filepath.Join(j.workDir, "tts")
	if err := os.MkdirAll(speechDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrTransient, StageTTS, "prepare work dir", "", err)
	}
	batches := planSpeech(tl, cfg.TTS.BatchChars, cfg.TTS.Voice)
	results := make([][]reconcile.Clip, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.TTS.Requests, 1))
	for i, b := range batches {
		g.Go(func() error {
			clips, err := j.voiceBatch(gctx, speechDir, b)
			if err != nil {
				return fmt.Errorf("batch %d (lines %d-%d): %w", i+1, b.first+1, b.first+len(b.lines), err)
			}
			results[i] = clips
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", services.Wrap(services.ErrExternalTool, StageTTS, "synthesize", "", err)
	}

	var clips []reconcile.Clip
	for _, r := range results {
		clips = append(clips, r...)
	}
	if len(clips) != tl.Len() {
		logging.WarnWithContext(logger, "clip count differs from line count", "tts_clip_mismatch",
			logging.Int("clips", len(clips)),
			logging.Int("lines", tl.Len()),
			logging.String(logging.FieldImpact, "unpaired lines are dropped from the dub"),
		)
	}
	segments := reconcile.BuildSegments(clips, tl, reconcile.BorrowOptions{
		MinBorrow:      cfg.TTS.MinBorrow,
		BorrowInterval: cfg.TTS.BorrowInterval,
	})

	// The track is assembled in the work dir and moved into place whole.
	audioPath := j.artifact("." + strings.TrimPrefix(cfg.TTS.AudioFormat, "."))
	concatDir := filepath.Join(j.workDir, "concat")
	if err := os.MkdirAll(concatDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, StageTTS, "prepare concat dir", "", err)
	}
	staged := filepath.Join(concatDir, filepath.Base(audioPath))
	stats, err := j.r.deps.Audio.Concat(ctx, segments, concatDir, staged)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, StageTTS, "assemble audio", "", err)
	}
	if err := fileutil.MoveFile(staged, audioPath); err != nil {
		return "", services.Wrap(services.ErrExternalTool, StageTTS, "publish audio", "", err)
	}
	logger.Info("speech assembled",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int("batches", len(batches)),
		logging.Int("segments", stats.Segments),
		logging.Int("sped_up", stats.SpedUp),
		logging.Float64("max_speed", stats.MaxSpeed),
		logging.Seconds("silence_seconds", stats.Silence),
		logging.Seconds("audio_seconds", stats.Duration),
		logging.String("output", audioPath),
		logging.Duration("elapsed", j.r.now().Sub(start)),
	)

	if j.task.Video == "" || !cfg.TTS.AddTrack {
		j.outputs = append(j.outputs, audioPath)
		return j.task.Video, nil
	}
	dubbed := j.artifact(".tts.mp4")
	if err := j.r.deps.Audio.AddAudioTrack(ctx, j.task.Video, audioPath, dubbed, cfg.TrackTitle(), langpkg.ToISO3(targetLang)); err != nil {
		return "", services.Wrap(services.ErrExternalTool, StageTTS, "add audio track", "", err)
	}
	if j.keep() {
		j.outputs = append(j.outputs, audioPath)
	} else if err := os.Remove(audioPath); err != nil {
		logger.Debug("dub audio not removed", logging.Error(err))
	}
	j.outputs = append(j.outputs, dubbed)
	return dubbed, nil
}

// voiceBatch returns one clip per line of b, reusing clips a previous run
// left in dir.
func (j *job) voiceBatch(ctx context.Context, dir string, b speechBatch) ([]reconcile.Clip, error) {
	if clips, ok := cachedClips(dir, b); ok {
		j.logger.Debug("reusing cached speech",
			logging.String("batch", b.prefix),
			logging.Int("lines", len(b.lines)),
		)
		return clips, nil
	}
	speech := filepath.Join(dir, b.prefix+".mp3")
	words, err := j.r.deps.Synthesizer.Synthesize(ctx, strings.Join(b.lines, "\n"), j.r.cfg.TTS.Voice, speech)
	if err != nil {
		return nil, err
	}
	wav := filepath.Join(dir, b.prefix+".wav")
	if err := j.r.deps.Audio.ConvertToWAV(ctx, speech, wav); err != nil {
		return nil, err
	}
	return reconcile.NewExtractor(j.logger).Extract(wav, words, b.lines, dir, b.prefix)
}

func cachedClips(dir string, b speechBatch) ([]reconcile.Clip, bool) {
	clips := make([]reconcile.Clip, len(b.lines))
	for i := range b.lines {
		path := reconcile.ClipPath(dir, b.prefix, i)
		duration, err := wavio.Duration(path)
		if err != nil {
			return nil, false
		}
		clips[i] = reconcile.Clip{Path: path, Duration: duration}
	}
	return clips, true
}
