package ledger

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// TranslationKey derives the cache key for one LLM exchange.
func TranslationKey(model, targetLang, system, user string) string {
	h := sha256.New()
	for _, part := range []string{model, targetLang, system, user} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// CachedTranslation returns the stored response for key, if any.
func (s *Store) CachedTranslation(ctx context.Context, key string) (string, bool, error) {
	ctx = ensureContext(ctx)
	var response string
	err := s.db.QueryRowContext(ctx, `SELECT response FROM translations WHERE cache_key = ?`, key).Scan(&response)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup translation: %w", err)
	}
	return response, true, nil
}

// StoreTranslation saves a response, replacing any previous one for key.
func (s *Store) StoreTranslation(ctx context.Context, key, model, targetLang, response string) error {
	err := s.exec(ctx,
		`INSERT INTO translations (cache_key, model, target_lang, response, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET response = excluded.response, created_at = excluded.created_at`,
		key, model, targetLang, response, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("store translation: %w", err)
	}
	return nil
}

// PruneTranslations deletes cached responses older than maxAge and returns
// the number removed.
func (s *Store) PruneTranslations(ctx context.Context, maxAge time.Duration) (int64, error) {
	ctx = ensureContext(ctx)
	cutoff := formatTime(time.Now().Add(-maxAge))
	var removed int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM translations WHERE created_at < ?`, cutoff)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("prune translations: %w", err)
	}
	return removed, nil
}
