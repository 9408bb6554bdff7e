// Package metrics provides Prometheus instrumentation for the cache.
//
// A nil *Metrics is valid and records nothing, so callers never need to check
// whether metrics were configured.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace prefixes every metric name unless overridden.
const DefaultNamespace = "kvcache"

// Hit layers.
const (
	LayerMemory = "memory"
	LayerDisk   = "disk"
)

// Eviction reasons.
const (
	ReasonLazy  = "lazy"
	ReasonSweep = "sweep"
)

// Metrics holds all Prometheus collectors for the cache.
type Metrics struct {
	// Read path
	Hits         *prometheus.CounterVec
	Misses       prometheus.Counter
	DecodeErrors prometheus.Counter

	// Write path
	Writes      prometheus.Counter
	WriteErrors prometheus.Counter

	// Expiry
	Evictions     *prometheus.CounterVec
	SweepDuration prometheus.Histogram
}

// New registers the cache collectors on reg under namespace.
// An empty namespace uses DefaultNamespace. A nil reg returns nil.
// Collectors already registered by an earlier call are reused, so several
// caches can report into one registry.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	if reg == nil {
		return nil
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}

	return &Metrics{
		Hits: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hits_total",
			Help:      "Cache hits by the layer that served them",
		}, []string{"layer"})),
		Misses: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "misses_total",
			Help:      "Lookups that found no live entry",
		})),
		DecodeErrors: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Entry files that could not be decoded",
		})),
		Writes: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "writes_total",
			Help:      "Entries written through to disk",
		})),
		WriteErrors: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "write_errors_total",
			Help:      "Failed disk writes",
		})),
		Evictions: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evictions_total",
			Help:      "Expired entries removed, by how they were found",
		}, []string{"reason"})),
		SweepDuration: register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of expiry sweeps in seconds",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10, 30},
		})),
	}
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// RecordHit records a lookup served from layer.
func (m *Metrics) RecordHit(layer string) {
	if m == nil {
		return
	}
	m.Hits.WithLabelValues(layer).Inc()
}

// RecordMiss records a lookup that found nothing.
func (m *Metrics) RecordMiss() {
	if m == nil {
		return
	}
	m.Misses.Inc()
}

// RecordDecodeError records an undecodable entry file.
func (m *Metrics) RecordDecodeError() {
	if m == nil {
		return
	}
	m.DecodeErrors.Inc()
}

// RecordWrite records a write-through attempt.
func (m *Metrics) RecordWrite(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.WriteErrors.Inc()
		return
	}
	m.Writes.Inc()
}

// RecordEvictions adds n evictions for reason.
func (m *Metrics) RecordEvictions(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Evictions.WithLabelValues(reason).Add(float64(n))
}

// RecordSweep records how long a sweep took.
func (m *Metrics) RecordSweep(duration time.Duration) {
	if m == nil {
		return
	}
	m.SweepDuration.Observe(duration.Seconds())
}
