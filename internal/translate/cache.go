package translate

import (
	"context"
	"log/slog"
	"strings"

	"dubbing/internal/ledger"
	"dubbing/internal/logging"
)

// ResponseCache stores translation responses across runs.
type ResponseCache interface {
	CachedTranslation(ctx context.Context, key string) (string, bool, error)
	StoreTranslation(ctx context.Context, key, model, targetLang, response string) error
}

type replyCheckKey struct{}

// withReplyCheck marks requests whose replies are only worth caching when
// check accepts them.
func withReplyCheck(ctx context.Context, check func(reply string) bool) context.Context {
	return context.WithValue(ctx, replyCheckKey{}, check)
}

func replyAccepted(ctx context.Context, reply string) bool {
	if strings.TrimSpace(reply) == "" {
		return false
	}
	check, ok := ctx.Value(replyCheckKey{}).(func(string) bool)
	return !ok || check(reply)
}

// CachingTranslator answers repeated requests from a ResponseCache so reruns
// over the same subtitles do not issue new requests. Blank replies and replies
// rejected by the request's check are never stored, so retries reach the LLM.
// Cache faults are logged and never fail a translation.
type CachingTranslator struct {
	next       Translator
	cache      ResponseCache
	model      string
	targetLang string
	logger     *slog.Logger
}

// NewCachingTranslator wraps next. model and targetLang are part of the key.
func NewCachingTranslator(next Translator, cache ResponseCache, model, targetLang string, logger *slog.Logger) *CachingTranslator {
	return &CachingTranslator{
		next:       next,
		cache:      cache,
		model:      model,
		targetLang: targetLang,
		logger:     logging.NewComponentLogger(logger, "translate-cache"),
	}
}

// Ask implements Translator.
func (c *CachingTranslator) Ask(ctx context.Context, system, user string) (string, error) {
	key := c.key(system, user)
	logger := logging.WithContext(ctx, c.logger)
	if cached, ok, err := c.cache.CachedTranslation(ctx, key); err != nil {
		logging.WarnWithContext(logger, "translation cache lookup failed", "translate_cache_read_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "request is sent to the LLM"),
		)
	} else if ok && replyAccepted(ctx, cached) {
		logger.Debug("translation cache hit", logging.String("cache_key", key))
		return cached, nil
	} else if ok {
		logger.Debug("cached translation rejected", logging.String("cache_key", key))
	}

	reply, err := c.next.Ask(ctx, system, user)
	if err != nil {
		return "", err
	}
	if !replyAccepted(ctx, reply) {
		return reply, nil
	}
	if err := c.cache.StoreTranslation(ctx, key, c.model, c.targetLang, reply); err != nil {
		logging.WarnWithContext(logger, "translation cache write failed", "translate_cache_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "the next run repeats this request"),
		)
	}
	return reply, nil
}

func (c *CachingTranslator) key(system, user string) string {
	return ledger.TranslationKey(c.model, c.targetLang, system, user)
}
