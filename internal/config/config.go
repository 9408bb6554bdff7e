// Package config loads kvcache settings from defaults, a YAML file and the
// environment, in that order of precedence (lowest first).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rshade/kvcache/internal/engine/batch"
	"github.com/rshade/kvcache/internal/logging"
)

// Environment variables.
const (
	EnvStore      = "KVCACHE_STORE"
	EnvDefaultTTL = "KVCACHE_DEFAULT_TTL"
	EnvLogLevel   = "KVCACHE_LOG_LEVEL"
	EnvLogFormat  = "KVCACHE_LOG_FORMAT"
	EnvConfig     = "KVCACHE_CONFIG"
)

// DefaultStore is the store directory used when none is configured.
const DefaultStore = "./kvcache-data"

const (
	configDirPerm  = 0o750
	configFilePerm = 0o600
)

// Validation errors.
var (
	ErrInvalidStore  = errors.New("store path cannot be empty")
	ErrInvalidSweep  = errors.New("invalid sweep settings")
	ErrInvalidLogger = errors.New("invalid logging settings")
)

// Config is the full set of kvcache settings.
type Config struct {
	Store      string        `yaml:"store"`
	DefaultTTL Duration      `yaml:"default_ttl"`
	Logging    LoggingConfig `yaml:"logging"`
	Sweep      SweepConfig   `yaml:"sweep"`
	Metrics    MetricsConfig `yaml:"metrics"`
}

// LoggingConfig controls log level, format and destination.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// SweepConfig controls how RemoveExpired scans disk.
type SweepConfig struct {
	BatchSize   int `yaml:"batch_size"`
	Concurrency int `yaml:"concurrency"`
}

// MetricsConfig controls Prometheus metric naming.
type MetricsConfig struct {
	Namespace string `yaml:"namespace"`
}

// Duration is a time.Duration read from YAML with ParseTTL.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	v, err := ParseTTL(node.Value)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// New returns a Config with the built-in defaults.
func New() *Config {
	return &Config{
		Store: DefaultStore,
		Logging: LoggingConfig{
			Level:  "info",
			Format: logging.FormatAuto,
		},
		Sweep: SweepConfig{
			BatchSize:   batch.DefaultBatchSize,
			Concurrency: batch.DefaultConcurrency,
		},
		Metrics: MetricsConfig{
			Namespace: "kvcache",
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (or
// $KVCACHE_CONFIG when path is empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := New()

	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		if err := ShallowMergeYAML(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from KVCACHE_* environment variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvStore); v != "" {
		c.Store = v
	}
	if v := os.Getenv(EnvDefaultTTL); v != "" {
		ttl, err := ParseTTL(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDefaultTTL, err)
		}
		c.DefaultTTL = Duration(ttl)
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Logging.Format = v
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Store) == "" {
		return ErrInvalidStore
	}
	if c.DefaultTTL < 0 {
		return fmt.Errorf("%w: got %s", ErrInvalidTTL, time.Duration(c.DefaultTTL))
	}
	if c.Sweep.BatchSize < batch.MinBatchSize || c.Sweep.BatchSize > batch.MaxBatchSize {
		return fmt.Errorf("%w: batch_size must be between %d and %d, got %d",
			ErrInvalidSweep, batch.MinBatchSize, batch.MaxBatchSize, c.Sweep.BatchSize)
	}
	if c.Sweep.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be at least 1, got %d", ErrInvalidSweep, c.Sweep.Concurrency)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", logging.FormatAuto, logging.FormatConsole, logging.FormatJSON:
	default:
		return fmt.Errorf("%w: unknown format %q", ErrInvalidLogger, c.Logging.Format)
	}
	return nil
}

// ToLoggingConfig converts the logging section for the logging package.
// A configured file switches output to that file; otherwise logs go to stderr.
func (lc LoggingConfig) ToLoggingConfig() logging.Config {
	output := logging.OutputStderr
	if lc.File != "" {
		output = logging.OutputFile
	}

	return logging.Config{
		Level:  lc.Level,
		Format: lc.Format,
		Output: output,
		File:   lc.File,
	}
}

// Save writes the configuration as YAML to path, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), configDirPerm); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err = os.WriteFile(path, data, configFilePerm); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}
