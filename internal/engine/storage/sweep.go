package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rshade/kvcache/internal/engine/batch"
	"github.com/rshade/kvcache/pkg/kvcache/codec"
)

// SweepStats summarizes one disk sweep.
type SweepStats struct {
	// Scanned is the number of entry files whose header was read.
	Scanned int

	// Removed is the number of expired entry files deleted.
	Removed int

	// Corrupt is the number of entry files with an unreadable header. They are left in place.
	Corrupt int

	// TempRemoved is the number of stale temp files deleted.
	TempRemoved int
}

// DiskStats describes the entry files of one store.
type DiskStats struct {
	Entries int
	Bytes   int64
	Expired int
	Corrupt int
}

// storeFiles is the result of walking a store root.
type storeFiles struct {
	entries []string
	temps   []string
}

// walk lists entry and temp files under store. A missing root is empty.
func (s *Storage) walk(store string) (storeFiles, error) {
	var files storeFiles

	err := filepath.WalkDir(store, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}

		switch {
		case strings.HasSuffix(path, EntryExtension):
			files.entries = append(files.entries, path)
		case strings.HasSuffix(path, tempExtension):
			files.temps = append(files.temps, path)
		}
		return nil
	})
	if err != nil {
		return files, fmt.Errorf("failed to walk store %s: %w", store, err)
	}

	return files, nil
}

// Sweep deletes every entry file in store whose header expiry is at or before
// now, reading only the fixed header of each file. Temp files older than
// StaleTempAge are removed too. Directories are never removed.
func (s *Storage) Sweep(ctx context.Context, store string, now time.Time) (SweepStats, error) {
	var stats SweepStats

	files, err := s.walk(store)
	if err != nil {
		return stats, err
	}

	stats.TempRemoved = s.removeStaleTemps(files.temps, now)

	var scanned, removed, corrupt atomic.Int64
	sweepBatch := func(ctx context.Context, paths []string, _ int) error {
		var errs []error
		for _, path := range paths {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}

			expired, found, readErr := s.expiredAt(path, now)
			switch {
			case errors.Is(readErr, codec.ErrFormat):
				corrupt.Add(1)
				s.log.Warn().Err(readErr).Str("path", path).Msg("skipping corrupt cache file")
				continue
			case readErr != nil:
				errs = append(errs, readErr)
				continue
			case !found:
				continue
			}

			scanned.Add(1)
			if !expired {
				continue
			}

			ok, rmErr := s.removeIfExpired(path, now)
			if rmErr != nil {
				errs = append(errs, rmErr)
				continue
			}
			if ok {
				removed.Add(1)
			}
		}
		return errors.Join(errs...)
	}

	err = s.processor.ProcessConcurrent(ctx, files.entries, sweepBatch, s.concurrency)

	stats.Scanned = int(scanned.Load())
	stats.Removed = int(removed.Load())
	stats.Corrupt = int(corrupt.Load())

	s.log.Debug().
		Str("store", store).
		Int("batch_size", s.processor.BatchSize()).
		Int("scanned", stats.Scanned).
		Int("removed", stats.Removed).
		Int("corrupt", stats.Corrupt).
		Int("temp_removed", stats.TempRemoved).
		Msg("disk sweep finished")

	return stats, err
}

func (s *Storage) expiredAt(path string, now time.Time) (expired, found bool, err error) {
	expiresAt, found, err := s.readExpiryAt(path)
	if err != nil || !found {
		return false, found, err
	}
	return !expiresAt.IsZero() && !now.Before(expiresAt), true, nil
}

// RemoveIfExpired deletes key's file when its header expiry is at or before
// now. It reports whether a file was removed.
func (s *Storage) RemoveIfExpired(key, store string, now time.Time) (bool, error) {
	return s.removeIfExpired(s.Path(key, store), now)
}

// removeIfExpired re-reads the header under the entry lock so a fresh write
// that landed after the scan is not deleted.
func (s *Storage) removeIfExpired(path string, now time.Time) (bool, error) {
	unlock := s.locks.lock(path)
	defer unlock()

	expired, found, err := s.expiredAt(path, now)
	if err != nil || !found || !expired {
		return false, err
	}

	if err = os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete expired cache file: %w", err)
	}
	return true, nil
}

func (s *Storage) removeStaleTemps(paths []string, now time.Time) int {
	removed := 0
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil || now.Sub(info.ModTime()) < StaleTempAge {
			continue
		}
		if err = os.Remove(path); err == nil {
			removed++
		}
	}
	return removed
}

// Clear deletes every entry and temp file in store and returns how many entry
// files were removed. The directory tree is kept.
func (s *Storage) Clear(store string) (int, error) {
	files, err := s.walk(store)
	if err != nil {
		return 0, err
	}

	removed := 0
	err = s.scan(files.entries, func(path string) error {
		if rmErr := s.removePath(path); rmErr != nil {
			return fmt.Errorf("failed to remove cache file %s: %w", filepath.Base(path), rmErr)
		}
		removed++
		return nil
	})
	for _, path := range files.temps {
		_ = os.Remove(path)
	}

	return removed, err
}

// Stats counts the entry files of store, their total size, and how many are
// expired at now.
func (s *Storage) Stats(store string, now time.Time) (DiskStats, error) {
	var stats DiskStats

	files, err := s.walk(store)
	if err != nil {
		return stats, err
	}

	err = s.scan(files.entries, func(path string) error {
		info, statErr := os.Stat(path)
		if statErr != nil {
			return nil
		}
		stats.Entries++
		stats.Bytes += info.Size()

		expired, _, readErr := s.expiredAt(path, now)
		switch {
		case errors.Is(readErr, codec.ErrFormat):
			stats.Corrupt++
		case expired:
			stats.Expired++
		}
		return nil
	})

	return stats, err
}

// scan runs fn over paths one batch at a time and stops at the first error.
// It uses the sweep batch size but not the sweep progress callback.
func (s *Storage) scan(paths []string, fn func(path string) error) error {
	p, err := batch.NewProcessor[string](s.processor.BatchSize())
	if err != nil {
		return err
	}
	return p.Process(context.Background(), paths, func(_ context.Context, items []string, _ int) error {
		for _, path := range items {
			if err := fn(path); err != nil {
				return err
			}
		}
		return nil
	})
}

// SweepProgress installs a progress callback on the sweep processor.
func (s *Storage) SweepProgress(fn batch.ProgressCallback) {
	s.processor.WithProgressCallback(fn)
}
