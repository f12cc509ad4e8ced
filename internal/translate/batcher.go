package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"dubbing/internal/logging"
	"dubbing/internal/services"
	"dubbing/internal/timeline"
)

// Translator performs one translation request: a system instruction plus an
// optional document, answered with text. Implementations own transport
// retries; an error means the request cannot succeed.
type Translator interface {
	Ask(ctx context.Context, system, user string) (string, error)
}

// Batcher defaults.
const (
	DefaultBatchSize   = 10
	DefaultConcurrency = 10
	DefaultSectionGap  = 10.0
)

// Options tunes a Batcher.
type Options struct {
	// BatchSize is the maximum number of lines per request.
	BatchSize int
	// Concurrency bounds the number of batches in flight.
	Concurrency int
	// TagAttempts is how many times the tag protocol is tried per batch
	// before the proportional fallback. Zero goes straight to the fallback.
	TagAttempts int
	// SectionGap splits the timeline wherever entries are further apart
	// than this many seconds; batches never cross a section boundary.
	SectionGap float64
}

// Batcher translates timelines in bounded concurrent batches while keeping
// the entry count, order and timestamps of its input.
type Batcher struct {
	translator Translator
	opts       Options
	logger     *slog.Logger
}

// NewBatcher builds a batcher around translator.
func NewBatcher(translator Translator, opts Options, logger *slog.Logger) *Batcher {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.TagAttempts < 0 {
		opts.TagAttempts = 0
	}
	if opts.SectionGap <= 0 {
		opts.SectionGap = DefaultSectionGap
	}
	return &Batcher{
		translator: translator,
		opts:       opts,
		logger:     logging.NewComponentLogger(logger, "translate"),
	}
}

type batch struct {
	offset int
	lines  []string
}

// plan partitions tl into sections and each section into batches. Offsets
// index into tl.Entries.
func (b *Batcher) plan(tl *timeline.Timeline) ([]batch, int) {
	var batches []batch
	offset := 0
	sections := tl.Sections(b.opts.SectionGap)
	for _, section := range sections {
		texts := section.Texts()
		for start := 0; start < len(texts); start += b.opts.BatchSize {
			end := min(start+b.opts.BatchSize, len(texts))
			batches = append(batches, batch{offset: offset + start, lines: texts[start:end]})
		}
		offset += len(texts)
	}
	return batches, len(sections)
}

// Translate returns a copy of tl whose texts are translated to targetLang.
func (b *Batcher) Translate(ctx context.Context, tl *timeline.Timeline, targetLang string) (*timeline.Timeline, error) {
	if tl.Len() == 0 {
		return &timeline.Timeline{}, nil
	}
	logger := logging.WithContext(ctx, b.logger)
	batches, sections := b.plan(tl)
	logger.Info("translation planned",
		logging.Int("entries", tl.Len()),
		logging.Int("sections", sections),
		logging.Int("batches", len(batches)),
		logging.String("target_lang", targetLang),
	)

	out := make([]string, tl.Len())
	gate := semaphore.NewWeighted(int64(b.opts.Concurrency))
	group, admitCtx := errgroup.WithContext(ctx)
	for i, bt := range batches {
		// Admission stops after the first failure; batches already running
		// keep the caller's context and finish.
		if err := gate.Acquire(admitCtx, 1); err != nil {
			break
		}
		group.Go(func() error {
			defer gate.Release(1)
			texts, err := b.TranslateLines(services.WithRequestID(ctx, fmt.Sprintf("batch-%d", i+1)), bt.lines, targetLang)
			if err != nil {
				return fmt.Errorf("batch %d: %w", i+1, err)
			}
			copy(out[bt.offset:bt.offset+len(bt.lines)], texts)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return tl.WithTexts(out), nil
}

// TranslateLines translates one batch and always returns exactly len(lines)
// texts unless the translation operation itself fails.
func (b *Batcher) TranslateLines(ctx context.Context, lines []string, targetLang string) ([]string, error) {
	if len(lines) == 0 {
		return nil, nil
	}
	logger := logging.WithContext(ctx, b.logger)
	tagCtx := withReplyCheck(ctx, func(reply string) bool {
		_, err := parseTags(reply, len(lines))
		return err == nil
	})
	for attempt := 1; attempt <= b.opts.TagAttempts; attempt++ {
		reply, err := b.translator.Ask(tagCtx, tagPrompt(targetLang), wrapTags(lines))
		if err != nil {
			return nil, err
		}
		texts, err := parseTags(reply, len(lines))
		if err == nil {
			return texts, nil
		}
		if !errors.Is(err, errTagMismatch) {
			return nil, err
		}
		logger.Debug("tag protocol attempt rejected",
			logging.Int("attempt", attempt),
			logging.Int("entries", len(lines)),
			logging.Error(err),
		)
	}
	if b.opts.TagAttempts > 0 {
		logging.WarnWithContext(logger, "tag protocol failed; splitting translation proportionally",
			"translate_tag_fallback",
			logging.Int("entries", len(lines)),
			logging.Int("attempts", b.opts.TagAttempts),
			logging.String(logging.FieldImpact, "line breaks follow source length instead of meaning"),
			logging.String(logging.FieldErrorHint, "a stronger model usually keeps the markers intact"),
		)
	}

	reply, err := b.translator.Ask(ctx, textPrompt(targetLang), strings.Join(lines, " "))
	if err != nil {
		return nil, err
	}
	return splitProportional(stripTrailingEllipsis(reply), lines), nil
}
