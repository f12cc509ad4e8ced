package pipeline

import (
	"context"

	"dubbing/internal/logging"
	"dubbing/internal/services"
	"dubbing/internal/timeline"
	"dubbing/internal/translate"
)

// bilingualSeparator puts the two languages of a bilingual line on
// separate rows.
const bilingualSeparator = "\n"

// translate writes the translated and bilingual tracks and returns their
// paths. With translation disabled the source track stands in for the
// translation and there is no bilingual track.
func (j *job) translate(ctx context.Context) (string, string, error) {
	cfg := j.r.cfg
	if !cfg.Translate.Enabled {
		return j.sourceSRT, "", nil
	}
	ctx, logger := j.stageLogger(ctx, StageTranslate)
	if j.r.deps.Translator == nil {
		return "", "", services.Wrap(services.ErrConfiguration, StageTranslate, "translate", "translation is not configured", nil)
	}
	start := j.r.now()

	src, err := timeline.ReadFile(j.sourceSRT)
	if err != nil {
		return "", "", services.Wrap(services.ErrValidation, StageTranslate, "read source", j.sourceSRT, err)
	}
	src.CorrectTime(false)
	if cfg.Translate.RemoveEllipsis {
		src = src.RemoveEllipsis()
	}
	src = reflow(src, j.sourceLang, timeline.DefaultMinSentenceLen, logger)
	if j.keep() {
		if _, err := j.writeTimeline(src, ".adjusted.srt", false); err != nil {
			return "", "", services.Wrap(services.ErrTransient, StageTranslate, "write adjusted source", "", err)
		}
	}

	batcher := translate.NewBatcher(j.r.deps.Translator, translate.Options{
		BatchSize:   cfg.Translate.BatchSize,
		Concurrency: cfg.Translate.Concurrency,
		TagAttempts: cfg.TagAttempts(),
		SectionGap:  cfg.Translate.SectionGap,
	}, logger)
	out, err := batcher.Translate(ctx, src, cfg.Translate.TargetLang)
	if err != nil {
		return "", "", services.Wrap(services.ErrExternalTool, StageTranslate, "translate", "", err)
	}

	out = out.SplitByLength(cfg.Translate.SplitMaxLength, cfg.Translate.SplitMinTail)
	translated, err := j.writeTimeline(out, ".trans.srt", true)
	if err != nil {
		return "", "", services.Wrap(services.ErrTransient, StageTranslate, "write translation", "", err)
	}

	src = src.SplitWithRef(out)
	var both *timeline.Timeline
	if cfg.Subtitles.TranslatedFirst {
		both = out.ConcatText(src, bilingualSeparator)
	} else {
		both = src.ConcatText(out, bilingualSeparator)
	}
	bilingual, err := j.writeTimeline(both, ".bilingual.srt", true)
	if err != nil {
		return "", "", services.Wrap(services.ErrTransient, StageTranslate, "write bilingual", "", err)
	}

	logger.Info("translation complete",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int("source_lines", src.Len()),
		logging.Int("translated_lines", out.Len()),
		logging.String("target_lang", cfg.Translate.TargetLang),
		logging.String("output", translated),
		logging.Duration("elapsed", j.r.now().Sub(start)),
	)
	return translated, bilingual, nil
}
