package workdir

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"dubbing/internal/logging"
)

// LockName is the lock file guarding a work directory against concurrent runs.
const LockName = ".dubbing.lock"

// ErrBusy reports another process holding the work directory.
var ErrBusy = errors.New("work directory is in use by another run")

// Lock creates root if needed and takes its exclusive lock without waiting.
// The returned func releases it.
func Lock(root string) (func(), error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("ensure work dir: %w", err)
	}
	lock := flock.New(filepath.Join(root, LockName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock work dir: %w", err)
	}
	if !locked {
		return nil, ErrBusy
	}
	return func() { _ = lock.Unlock() }, nil
}

// Entry describes one per-file subdirectory.
type Entry struct {
	Name    string
	Path    string
	ModTime time.Time
	Size    int64
}

// List returns the subdirectories of root. A missing root is empty.
func List(root string) ([]Entry, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var dirs []Entry
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(root, entry.Name())
		modTime, size := walkStats(path)
		if modTime.IsZero() {
			continue
		}
		dirs = append(dirs, Entry{Name: entry.Name(), Path: path, ModTime: modTime, Size: size})
	}
	return dirs, nil
}

// walkStats returns the newest modification time and total size under path.
// A speech batch written yesterday keeps an older directory alive.
func walkStats(path string) (time.Time, int64) {
	var newest time.Time
	var size int64
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
		if !d.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return newest, size
}

// PruneResult is the outcome of a Prune.
type PruneResult struct {
	Removed []Entry
	Errors  []PruneError
}

// Reclaimed is the total size of the removed directories.
func (r PruneResult) Reclaimed() int64 {
	var total int64
	for _, e := range r.Removed {
		total += e.Size
	}
	return total
}

// PruneError pairs a directory with the error that kept it.
type PruneError struct {
	Path string
	Err  error
}

// Prune removes subdirectories of root untouched for longer than maxAge.
// maxAge <= 0 removes every subdirectory. The caller must hold the lock.
func Prune(ctx context.Context, root string, maxAge time.Duration, logger *slog.Logger) PruneResult {
	var result PruneResult
	dirs, err := List(root)
	if err != nil {
		result.Errors = append(result.Errors, PruneError{Path: root, Err: err})
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, dir := range dirs {
		if ctx.Err() != nil {
			break
		}
		if maxAge > 0 && !dir.ModTime.Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(dir.Path); err != nil {
			result.Errors = append(result.Errors, PruneError{Path: dir.Path, Err: err})
			if logger != nil {
				logging.WarnWithContext(logger, "failed to remove stale work directory", "workdir_prune_failed",
					logging.String("path", dir.Path),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check paths.work_dir permissions"),
					logging.String(logging.FieldImpact, "disk space not reclaimed"),
				)
			}
			continue
		}
		result.Removed = append(result.Removed, dir)
		if logger != nil {
			logger.Info("removed stale work directory",
				logging.String("path", dir.Path),
				logging.Duration("age", time.Since(dir.ModTime)),
				logging.Int64("bytes", dir.Size),
				logging.String(logging.FieldEventType, "workdir_pruned"),
			)
		}
	}
	return result
}
