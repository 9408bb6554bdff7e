package kvcache

import (
	"context"
	"errors"
	"time"

	"github.com/rshade/kvcache/internal/metrics"
)

// SweepResult summarizes one RemoveExpired call.
type SweepResult struct {
	// MemoryEvicted is the number of expired memory entries dropped.
	MemoryEvicted int

	// FilesScanned is the number of entry headers read from disk.
	FilesScanned int

	// FilesRemoved is the number of expired entry files deleted by the disk walk.
	FilesRemoved int

	// Corrupt is the number of entry files whose header could not be read.
	Corrupt int

	// TempRemoved is the number of abandoned temp files deleted.
	TempRemoved int

	Duration time.Duration
}

// Evicted returns the total number of expired entries removed.
func (r SweepResult) Evicted() int {
	return r.MemoryEvicted + r.FilesRemoved
}

// RemoveExpired deletes every expired entry of the store. Memory is scanned
// first, then the store tree is walked reading only entry headers, so entries
// written and expired by another process are reclaimed as well.
func (c *Cache) RemoveExpired(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	if err := c.checkOpen(); err != nil {
		return result, err
	}

	start := time.Now()
	now := c.now()

	var errs []error
	c.shared.rangeStore(c.store, func(k string, e Entry) {
		if !e.IsExpired(now) {
			return
		}
		if c.shared.deleteIf(c.store, k, func(cur Entry) bool { return cur.IsExpired(now) }) {
			result.MemoryEvicted++
		}
		if _, err := c.storage.RemoveIfExpired(k, c.store, now); err != nil {
			errs = append(errs, err)
		}
	})

	if err := ctx.Err(); err != nil {
		result.Duration = time.Since(start)
		return result, errors.Join(append(errs, err)...)
	}

	disk, err := c.storage.Sweep(ctx, c.store, now)
	if err != nil {
		errs = append(errs, err)
	}
	result.FilesScanned = disk.Scanned
	result.FilesRemoved = disk.Removed
	result.Corrupt = disk.Corrupt
	result.TempRemoved = disk.TempRemoved
	result.Duration = time.Since(start)

	c.metrics.RecordEvictions(metrics.ReasonSweep, result.Evicted())
	c.metrics.RecordSweep(result.Duration)

	c.log.Debug().
		Int("memory_evicted", result.MemoryEvicted).
		Int("files_scanned", result.FilesScanned).
		Int("files_removed", result.FilesRemoved).
		Int("corrupt", result.Corrupt).
		Dur("duration", result.Duration).
		Msg("expiry sweep finished")

	return result, errors.Join(errs...)
}

// Stats describes the contents of a store.
type Stats struct {
	Store         string
	MemoryEntries int
	DiskEntries   int
	DiskBytes     int64
	Expired       int
	Corrupt       int
}

// Stats counts memory entries and entry files. Expired files are counted by
// header without being removed.
func (c *Cache) Stats() (Stats, error) {
	if err := c.checkOpen(); err != nil {
		return Stats{}, err
	}

	disk, err := c.storage.Stats(c.store, c.now())
	if err != nil {
		return Stats{}, err
	}

	return Stats{
		Store:         c.store,
		MemoryEntries: c.shared.count(c.store),
		DiskEntries:   disk.Entries,
		DiskBytes:     disk.Bytes,
		Expired:       disk.Expired,
		Corrupt:       disk.Corrupt,
	}, nil
}

// Clear removes every entry of the store from memory and disk and returns
// the number of files deleted. Shard directories are kept. Files are deleted
// before memory is dropped so no read-through can repopulate memory from them.
func (c *Cache) Clear() (int, error) {
	if err := c.checkOpen(); err != nil {
		return 0, err
	}

	removed, err := c.storage.Clear(c.store)
	dropped := c.shared.clearStore(c.store)
	c.log.Debug().Int("memory", dropped).Int("files", removed).Msg("store cleared")
	return removed, err
}
