package pipeline

import (
	"context"
	"os"

	langpkg "dubbing/internal/language"
	"dubbing/internal/logging"
	"dubbing/internal/mux"
	"dubbing/internal/services"
)

// mux embeds the subtitle tracks into a copy of video. With a dubbed video
// as input the intermediate is replaced by the muxed file.
func (j *job) mux(ctx context.Context, video, translated, bilingual string) error {
	cfg := j.r.cfg
	if !cfg.Subtitles.Mux || video == "" {
		return nil
	}
	ctx, logger := j.stageLogger(ctx, StageSubtitles)
	if j.r.deps.Muxer == nil {
		return services.Wrap(services.ErrConfiguration, StageSubtitles, "mux", "subtitle muxing is not configured", nil)
	}
	tracks := j.subtitleTracks(translated, bilingual)
	if len(tracks) == 0 {
		logger.Info("no subtitle tracks selected",
			logging.Args(logging.DecisionAttrs("subtitle_mux", "skipped", "every track type is disabled")...)...)
		return nil
	}

	start := j.r.now()
	result, err := j.r.deps.Muxer.Mux(ctx, mux.Request{
		Video:  video,
		Output: j.artifact(".sub.mkv"),
		Tracks: tracks,
	})
	if err != nil {
		return services.Wrap(services.ErrExternalTool, StageSubtitles, "mux", "mkvmerge failed", err)
	}
	j.outputs = append(j.outputs, result.OutputPath)

	if video != j.task.Video && !j.keep() {
		if err := os.Remove(video); err != nil {
			logger.Debug("dubbed intermediate not removed", logging.Error(err))
		} else {
			j.dropOutput(video)
		}
	}
	logger.Info("subtitles muxed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int("tracks", result.Tracks),
		logging.String("output", result.OutputPath),
		logging.Duration("elapsed", j.r.now().Sub(start)),
	)
	return nil
}

// subtitleTracks lists the enabled tracks. The first one becomes the
// default track.
func (j *job) subtitleTracks(translated, bilingual string) []mux.Track {
	cfg := j.r.cfg.Subtitles
	target := j.r.cfg.Translate.TargetLang
	var source, trans []mux.Track
	if cfg.AddSource && j.sourceSRT != "" {
		source = append(source, mux.Track{Path: j.sourceSRT, Title: cfg.SourceTitle, Language: j.sourceLang})
	}
	if j.r.cfg.Translate.Enabled && cfg.AddTranslated && translated != "" {
		trans = append(trans, mux.Track{Path: translated, Title: cfg.TranslatedTitle, Language: target})
	}

	var tracks []mux.Track
	if cfg.TranslatedFirst {
		tracks = append(append(tracks, trans...), source...)
	} else {
		tracks = append(append(tracks, source...), trans...)
	}
	if cfg.AddBilingual && bilingual != "" {
		title := cfg.BilingualTitle
		if title == "" {
			title = langpkg.DisplayName(j.sourceLang) + " / " + langpkg.DisplayName(target)
		}
		lang := j.sourceLang
		if cfg.TranslatedFirst {
			lang = target
		}
		tracks = append(tracks, mux.Track{Path: bilingual, Title: title, Language: lang})
	}
	return tracks
}
