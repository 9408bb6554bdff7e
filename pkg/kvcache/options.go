package kvcache

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/rshade/kvcache/pkg/kvcache/codec"
)

// Option configures a Cache.
type Option func(*options)

type options struct {
	shared     *Shared
	registry   *codec.Registry
	log        zerolog.Logger
	registerer prometheus.Registerer
	namespace  string
	clock      func() time.Time
	hash       func(string) uint32

	sweepBatch       int
	sweepConcurrency int
	compression      *int
	sweepProgress    func(SweepProgress)
}

func defaultOptions() options {
	return options{
		log:   zerolog.Nop(),
		clock: time.Now,
	}
}

// WithShared binds the cache to a memory layer other than DefaultShared.
// Caches sharing a handle and a store see each other's entries without
// touching disk.
func WithShared(s *Shared) Option {
	return func(o *options) {
		o.shared = s
	}
}

// WithRegistry sets the codec registry used to tag and decode values.
// The default registry knows only the built-in types.
func WithRegistry(r *codec.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithMetrics registers the cache's Prometheus collectors on reg.
// namespace may be empty to use "kvcache".
func WithMetrics(reg prometheus.Registerer, namespace string) Option {
	return func(o *options) {
		o.registerer = reg
		o.namespace = namespace
	}
}

// WithClock replaces time.Now for TTL decisions.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.clock = now
		}
	}
}

// WithSweep sets how RemoveExpired scans disk: entry headers are read in
// batches of batchSize with at most concurrency batches in flight.
func WithSweep(batchSize, concurrency int) Option {
	return func(o *options) {
		o.sweepBatch = batchSize
		o.sweepConcurrency = concurrency
	}
}

// WithShardHash replaces the hash that picks shard directories. Every process
// using a store must agree on it.
func WithShardHash(fn func(string) uint32) Option {
	return func(o *options) {
		o.hash = fn
	}
}

// WithCompressionThreshold overrides the tag+payload length above which entry
// bodies are gzipped. A negative value disables compression.
func WithCompressionThreshold(n int) Option {
	return func(o *options) {
		o.compression = &n
	}
}

// SweepProgress reports how far a disk sweep has got.
type SweepProgress struct {
	Processed int
	Total     int
	// Percent is Processed as a share of Total, from 0 to 100.
	Percent float64
	// Rate is files examined per second so far.
	Rate    float64
	Elapsed time.Duration
}

// WithSweepProgress calls fn after each batch of entry files RemoveExpired
// examines. fn may be called from several goroutines.
func WithSweepProgress(fn func(SweepProgress)) Option {
	return func(o *options) {
		o.sweepProgress = fn
	}
}
