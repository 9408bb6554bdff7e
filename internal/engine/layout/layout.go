// Package layout derives the shard directories an entry lives in.
package layout

import (
	"fmt"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
)

// shardWidth is the number of hex digits per shard directory name.
const shardWidth = 2

// shardLevels is the number of shard directories below the store root.
const shardLevels = 2

// HashFunc maps a normalized key to a 32-bit value. It must be stable
// across process restarts.
type HashFunc func(key string) uint32

// Option configures a Layout.
type Option func(*Layout)

// WithHash replaces the default xxHash-based hash.
func WithHash(fn HashFunc) Option {
	return func(l *Layout) {
		if fn != nil {
			l.hash = fn
		}
	}
}

// Layout computes deterministic shard paths.
type Layout struct {
	hash HashFunc
}

// New returns a Layout using the low 32 bits of xxHash64 unless overridden.
func New(opts ...Option) *Layout {
	l := &Layout{hash: Hash32}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Hash32 is the default shard hash: unsalted xxHash64 truncated to 32 bits.
func Hash32(key string) uint32 {
	return uint32(xxhash.Sum64String(key)) //nolint:gosec // truncation is the point
}

// Generate returns the path segments for key: the store root followed by two
// 2-character shard names taken from the first four hex digits of the hash.
// The store segment is returned as given and may itself contain separators.
func (l *Layout) Generate(key, store string) []string {
	hashed := fmt.Sprintf("%08X", l.hash(key))

	segments := make([]string, 0, 1+shardLevels)
	segments = append(segments, store)
	for i := range shardLevels {
		start := i * shardWidth
		segments = append(segments, hashed[start:start+shardWidth])
	}

	return segments
}

// Dir joins the segments from Generate into a directory path.
func (l *Layout) Dir(key, store string) string {
	return filepath.Join(l.Generate(key, store)...)
}

// FilePath returns the full entry path for key with the given extension.
func (l *Layout) FilePath(key, store, ext string) string {
	return filepath.Join(l.Dir(key, store), key+ext)
}
