package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/rshade/kvcache/internal/engine/batch"
	"github.com/rshade/kvcache/internal/engine/layout"
	"github.com/rshade/kvcache/pkg/kvcache/codec"
)

const (
	// EntryExtension is the file extension of format-1 entry files.
	EntryExtension = ".kvc"

	// tempExtension marks in-flight writes.
	tempExtension = ".tmp"

	// StaleTempAge is how old a temp file must be before a sweep reclaims it.
	StaleTempAge = time.Hour

	dirPerm  = 0o750
	filePerm = 0o600
)

// Storage errors.
var (
	ErrEmptyStore = errors.New("store path cannot be empty")
)

// Option configures a Storage.
type Option func(*Storage)

// WithLogger sets the logger used for directory races and sweep diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Storage) {
		s.log = l
	}
}

// WithLayout replaces the default shard layout.
func WithLayout(l *layout.Layout) Option {
	return func(s *Storage) {
		if l != nil {
			s.layout = l
		}
	}
}

// WithSweep sets the header-scan batch size and parallelism used by Sweep.
// Invalid batch sizes fall back to batch.DefaultBatchSize.
func WithSweep(batchSize, concurrency int) Option {
	return func(s *Storage) {
		if p, err := batch.NewProcessor[string](batchSize); err == nil {
			s.processor = p
		}
		if concurrency > 0 {
			s.concurrency = concurrency
		}
	}
}

// Storage reads and writes entry files. It is safe for concurrent use and
// holds no per-store state, so one Storage can serve many stores.
type Storage struct {
	layout     *layout.Layout
	serializer *codec.Serializer
	log        zerolog.Logger

	// dirMu guards directory creation.
	dirMu sync.Mutex
	locks keyLocks

	processor   *batch.Processor[string]
	concurrency int
}

// New creates a Storage writing through serializer.
func New(serializer *codec.Serializer, opts ...Option) *Storage {
	if serializer == nil {
		serializer = codec.NewSerializer(nil)
	}

	s := &Storage{
		layout:      layout.New(),
		serializer:  serializer,
		log:         zerolog.Nop(),
		processor:   batch.NewProcessorWithDefaults[string](),
		concurrency: batch.DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the file that holds key in store.
func (s *Storage) Path(key, store string) string {
	return s.layout.FilePath(key, store, EntryExtension)
}

// Write persists entry under key. The directory chain is created as needed and
// the file is replaced atomically.
func (s *Storage) Write(key string, entry *codec.Entry, store string) error {
	if store == "" {
		return ErrEmptyStore
	}

	dir := s.ensureDirs(key, store)
	path := filepath.Join(dir, key+EntryExtension)

	unlock := s.locks.lock(path)
	defer unlock()

	// The temp name does not embed the key, so a key that fits the file name
	// limit as an entry also fits as a temp file.
	tempPath := filepath.Join(dir, "."+ulid.Make().String()+tempExtension)
	f, err := os.OpenFile(tempPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}

	bw := bufio.NewWriter(f)
	if err = s.serializer.Serialize(bw, entry); err == nil {
		err = bw.Flush()
	}
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to write cache file %s: %w", path, err)
	}

	if err = os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename cache file: %w", err)
	}

	return nil
}

// ensureDirs creates the shard directories for key. Failures are logged and
// swallowed: concurrent creators race harmlessly, and a real problem
// resurfaces when the entry file is opened.
func (s *Storage) ensureDirs(key, store string) string {
	dir := s.layout.Dir(key, store)

	s.dirMu.Lock()
	defer s.dirMu.Unlock()

	if err := os.MkdirAll(dir, dirPerm); err != nil && !errors.Is(err, fs.ErrExist) {
		s.log.Debug().Err(err).Str("dir", dir).Msg("could not create shard directory")
	}
	return dir
}

// Read loads the entry for key. found is false, with a nil error, when no
// file exists.
func (s *Storage) Read(key, store string) (entry *codec.Entry, found bool, err error) {
	path := s.Path(key, store)

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read cache file: %w", err)
	}
	defer f.Close()

	entry, err = s.serializer.Deserialize(bufio.NewReader(f))
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode cache file %s: %w", path, err)
	}
	return entry, true, nil
}

// ReadExpiry reads only the header of key's file. found is false when no
// file exists; a zero expiry means the entry never expires.
func (s *Storage) ReadExpiry(key, store string) (expiresAt time.Time, found bool, err error) {
	return s.readExpiryAt(s.Path(key, store))
}

func (s *Storage) readExpiryAt(path string) (time.Time, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("failed to read cache file: %w", err)
	}
	defer f.Close()

	expiresAt, err := s.serializer.ReadExpiry(f)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	return expiresAt, true, nil
}

// Exists reports whether key has a file. Expiry is not evaluated.
func (s *Storage) Exists(key, store string) (bool, error) {
	_, err := os.Stat(s.Path(key, store))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat cache file: %w", err)
}

// Remove deletes key's file. Returns nil if the file doesn't exist (idempotent).
func (s *Storage) Remove(key, store string) error {
	return s.removePath(s.Path(key, store))
}

func (s *Storage) removePath(path string) error {
	unlock := s.locks.lock(path)
	defer unlock()

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete cache file: %w", err)
	}
	return nil
}
