package kvcache

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/rshade/kvcache/internal/engine/batch"
	"github.com/rshade/kvcache/internal/engine/keys"
	"github.com/rshade/kvcache/internal/engine/layout"
	"github.com/rshade/kvcache/internal/engine/storage"
	"github.com/rshade/kvcache/internal/logging"
	"github.com/rshade/kvcache/internal/metrics"
	"github.com/rshade/kvcache/pkg/kvcache/codec"
)

// Cache is a persistent key-value cache bound to one store directory.
// It is safe for concurrent use.
type Cache struct {
	store  string
	shared *Shared
	closed atomic.Bool

	keys     *keys.Handler
	registry *codec.Registry
	storage  *storage.Storage
	log      zerolog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	reads singleflight.Group
}

// New opens the store at path, creating it if needed.
//
// Without WithShared the cache uses DefaultShared, so every cache in the
// process bound to the same store sees the same memory layer.
//
// The path is normalized the way store roots are and made absolute, so
// "./data" and "data" name the same store. Opening a store whose manifest
// declares an incompatible format fails with ErrIncompatibleStore.
func New(store string, opts ...Option) (*Cache, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	root, err := resolveStore(store)
	if err != nil {
		return nil, err
	}

	c := &Cache{
		store:    root,
		shared:   o.shared,
		keys:     keys.NewHandler(),
		registry: o.registry,
		log:      logging.ComponentLogger(o.log, "kvcache").With().Str("store", root).Logger(),
		metrics:  metrics.New(o.registerer, o.namespace),
		now:      o.clock,
	}
	if c.shared == nil {
		c.shared = DefaultShared()
	}
	if c.registry == nil {
		c.registry = codec.NewRegistry()
	}

	var serializerOpts []codec.SerializerOption
	if o.compression != nil {
		serializerOpts = append(serializerOpts, codec.WithCompressionThreshold(*o.compression))
	}

	storageOpts := []storage.Option{
		storage.WithLogger(logging.ComponentLogger(o.log, "storage")),
	}
	if o.hash != nil {
		storageOpts = append(storageOpts, storage.WithLayout(layout.New(layout.WithHash(o.hash))))
	}
	if o.sweepBatch != 0 || o.sweepConcurrency != 0 {
		storageOpts = append(storageOpts, storage.WithSweep(o.sweepBatch, o.sweepConcurrency))
	}
	c.storage = storage.New(codec.NewSerializer(c.registry, serializerOpts...), storageOpts...)
	if fn := o.sweepProgress; fn != nil {
		c.storage.SweepProgress(func(s batch.ProgressSnapshot) {
			fn(SweepProgress{
				Processed: s.ProcessedItems,
				Total:     s.TotalItems,
				Percent:   s.PercentComplete,
				Rate:      s.ItemsPerSecond,
				Elapsed:   s.ElapsedTime,
			})
		})
	}

	if _, err = c.storage.EnsureManifest(root, c.now()); err != nil {
		return nil, err
	}

	c.log.Debug().Msg("cache opened")
	return c, nil
}

func resolveStore(store string) (string, error) {
	if store == "" {
		return "", ErrEmptyStore
	}
	root, err := filepath.Abs(filepath.Clean(keys.NormalizeKey(store, true)))
	if err != nil {
		return "", fmt.Errorf("resolving store path: %w", err)
	}
	return root, nil
}

// StoreName returns the resolved store directory.
func (c *Cache) StoreName() string {
	return c.store
}

// Close makes further calls on c return ErrClosed. The memory layer is left
// open for other caches; use Shared.Close or CloseDefaultShared to drop it.
func (c *Cache) Close() error {
	if !c.closed.Swap(true) {
		c.log.Debug().Msg("cache closed")
	}
	return nil
}

func (c *Cache) checkOpen() error {
	if c.closed.Load() || c.shared.Closed() {
		return ErrClosed
	}
	return nil
}

func (c *Cache) computeKey(key any) (string, error) {
	if err := c.checkOpen(); err != nil {
		return "", err
	}
	return c.keys.ComputeKey(key)
}

// Set stores value under key with no expiry.
func (c *Cache) Set(key, value any) error {
	return c.set(key, value, nil)
}

// SetWithTTL stores value under key, expiring ttl from now. A ttl of zero or
// less stores an entry that is already expired.
func (c *Cache) SetWithTTL(key, value any, ttl time.Duration) error {
	return c.set(key, value, &ttl)
}

func (c *Cache) set(key, value any, ttl *time.Duration) error {
	k, err := c.computeKey(key)
	if err != nil {
		return err
	}

	tag, err := c.registry.TagOf(value)
	if err != nil {
		return err
	}

	entry := newEntry(c.registry.Normalize(tag, value), tag, c.now(), ttl)
	c.shared.put(c.store, k, entry)

	err = c.storage.Write(k, &codec.Entry{
		ExpiresAt: entry.ExpiresAt,
		TypeTag:   entry.TypeTag,
		Value:     entry.Value,
	}, c.store)
	c.metrics.RecordWrite(err)
	if err != nil {
		c.log.Error().Err(err).Str("key", k).Msg("write-through failed; memory is ahead of disk")
		return err
	}
	return nil
}

// TryGetValue returns the live value for key. Memory is consulted first and
// its expiry re-checked; on a miss the entry is read from disk. Expired
// entries are evicted from both layers and reported as not found.
func (c *Cache) TryGetValue(key any) (any, bool, error) {
	k, err := c.computeKey(key)
	if err != nil {
		return nil, false, err
	}

	entry, found, err := c.lookup(k, c.now())
	if err != nil || !found {
		return nil, false, err
	}
	return entry.Value, true, nil
}

// GetEntry is TryGetValue returning the whole entry, including its type tag
// and expiry.
func (c *Cache) GetEntry(key any) (Entry, bool, error) {
	k, err := c.computeKey(key)
	if err != nil {
		return Entry{}, false, err
	}
	return c.lookup(k, c.now())
}

func (c *Cache) lookup(k string, now time.Time) (Entry, bool, error) {
	if e, ok := c.shared.get(c.store, k); ok {
		if !e.IsExpired(now) {
			c.metrics.RecordHit(metrics.LayerMemory)
			return e, true, nil
		}
		c.evictExpired(k, now)
		c.metrics.RecordMiss()
		return Entry{}, false, nil
	}

	v, err, _ := c.reads.Do(k, func() (any, error) {
		return c.readThrough(k, now)
	})
	if err != nil {
		return Entry{}, false, err
	}

	e, ok := v.(*Entry)
	if !ok || e == nil {
		c.metrics.RecordMiss()
		return Entry{}, false, nil
	}
	c.metrics.RecordHit(metrics.LayerDisk)
	return *e, true, nil
}

// readThrough loads k from disk. It returns a nil *Entry when the key is
// absent or expired.
func (c *Cache) readThrough(k string, now time.Time) (*Entry, error) {
	gen := c.shared.generation(c.store, k)

	stored, found, err := c.storage.Read(k, c.store)
	if err != nil {
		if errors.Is(err, codec.ErrFormat) {
			c.metrics.RecordDecodeError()
			c.log.Warn().Err(err).Str("key", k).Msg("cache entry could not be decoded")
		}
		return nil, err
	}
	if !found {
		return nil, nil
	}

	if stored.IsExpired(now) {
		c.evictExpired(k, now)
		return nil, nil
	}

	e, _ := c.shared.fill(c.store, k, Entry{
		Value:     stored.Value,
		TypeTag:   stored.TypeTag,
		ExpiresAt: stored.ExpiresAt,
	}, gen)
	return &e, nil
}

// evictExpired drops k from memory and disk, leaving any entry written
// concurrently with a later expiry in place.
func (c *Cache) evictExpired(k string, now time.Time) {
	c.shared.deleteIf(c.store, k, func(e Entry) bool { return e.IsExpired(now) })

	removed, err := c.storage.RemoveIfExpired(k, c.store, now)
	if err != nil {
		c.log.Debug().Err(err).Str("key", k).Msg("lazy eviction could not remove file")
		return
	}
	if removed {
		c.metrics.RecordEvictions(metrics.ReasonLazy, 1)
	}
	c.log.Debug().Str("key", k).Bool("file_removed", removed).Msg("evicted expired entry")
}

// Get returns the value stored under key as a T. It returns the zero value
// when the key is absent or the stored value is nil, and ErrTypeMismatch
// when the stored value is not a T.
func Get[T any](c *Cache, key any) (T, error) {
	var zero T

	v, found, err := c.TryGetValue(key)
	if err != nil || !found || v == nil {
		return zero, err
	}

	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: have %T, want %T", ErrTypeMismatch, v, zero)
	}
	return typed, nil
}

// Exists reports whether key has a live entry. Expired entries found along
// the way are evicted. A disk entry is checked by reading its header only.
func (c *Cache) Exists(key any) (bool, error) {
	k, err := c.computeKey(key)
	if err != nil {
		return false, err
	}
	now := c.now()

	if e, ok := c.shared.get(c.store, k); ok {
		if e.IsExpired(now) {
			c.evictExpired(k, now)
			return false, nil
		}
		return true, nil
	}

	expiresAt, found, err := c.storage.ReadExpiry(k, c.store)
	if err != nil || !found {
		return false, err
	}
	if !expiresAt.IsZero() && !now.Before(expiresAt) {
		c.evictExpired(k, now)
		return false, nil
	}
	return true, nil
}

// Remove deletes key from disk and memory. Removing a missing key is not an
// error. The file goes first so a concurrent read-through cannot refill
// memory from it afterwards.
func (c *Cache) Remove(key any) error {
	k, err := c.computeKey(key)
	if err != nil {
		return err
	}

	err = c.storage.Remove(k, c.store)
	c.shared.delete(c.store, k)
	return err
}
