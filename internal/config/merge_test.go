package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/kvcache/internal/config"
)

// newDefaultTarget returns a Config with known non-zero values so tests can
// verify that absent overlay keys leave the original values intact.
func newDefaultTarget() *config.Config {
	return &config.Config{
		Store:      "/var/cache/app",
		DefaultTTL: config.Duration(time.Hour),
		Logging: config.LoggingConfig{
			Level:  "info",
			Format: "json",
			File:   "/var/log/kvcache.log",
		},
		Sweep: config.SweepConfig{
			BatchSize:   50,
			Concurrency: 2,
		},
		Metrics: config.MetricsConfig{Namespace: "app"},
	}
}

// writeOverlay is a test helper that writes YAML content to a temp file
// and returns its path.
func writeOverlay(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kvcache.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestShallowMergeYAML_SingleKeyOverride(t *testing.T) {
	target := newDefaultTarget()
	overlay := writeOverlay(t, `
sweep:
  batch_size: 500
  concurrency: 8
`)

	require.NoError(t, config.ShallowMergeYAML(target, overlay))

	assert.Equal(t, 500, target.Sweep.BatchSize)
	assert.Equal(t, 8, target.Sweep.Concurrency)

	// Other sections should be unchanged.
	assert.Equal(t, "/var/cache/app", target.Store)
	assert.Equal(t, "json", target.Logging.Format)
	assert.Equal(t, config.Duration(time.Hour), target.DefaultTTL)
}

func TestShallowMergeYAML_SectionReplacedWhole(t *testing.T) {
	target := newDefaultTarget()
	overlay := writeOverlay(t, `
logging:
  level: debug
`)

	require.NoError(t, config.ShallowMergeYAML(target, overlay))

	assert.Equal(t, "debug", target.Logging.Level)
	assert.Empty(t, target.Logging.Format, "omitted fields of a present section are reset")
	assert.Empty(t, target.Logging.File)
}

func TestShallowMergeYAML_ScalarKeys(t *testing.T) {
	target := newDefaultTarget()
	overlay := writeOverlay(t, `
store: ./data
default_ttl: 2d3h
metrics:
  namespace: edge
`)

	require.NoError(t, config.ShallowMergeYAML(target, overlay))

	assert.Equal(t, "./data", target.Store)
	assert.Equal(t, config.Duration(51*time.Hour), target.DefaultTTL)
	assert.Equal(t, "edge", target.Metrics.Namespace)
}

func TestShallowMergeYAML_UnknownKeysIgnored(t *testing.T) {
	target := newDefaultTarget()
	overlay := writeOverlay(t, `
plugins:
  foo: bar
store: /tmp/x
`)

	require.NoError(t, config.ShallowMergeYAML(target, overlay))
	assert.Equal(t, "/tmp/x", target.Store)
}

func TestShallowMergeYAML_EmptyFile(t *testing.T) {
	target := newDefaultTarget()
	overlay := writeOverlay(t, "# nothing here\n")

	require.NoError(t, config.ShallowMergeYAML(target, overlay))
	assert.Equal(t, newDefaultTarget(), target)
}

func TestShallowMergeYAML_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "invalid yaml", content: "store: [unclosed\n"},
		{name: "wrong section type", content: "sweep: fast\n"},
		{name: "bad ttl", content: "default_ttl: soon\n"},
		{name: "negative ttl", content: "default_ttl: -5m\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := config.ShallowMergeYAML(newDefaultTarget(), writeOverlay(t, tt.content))
			require.Error(t, err)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		err := config.ShallowMergeYAML(newDefaultTarget(), filepath.Join(t.TempDir(), "absent.yaml"))
		require.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("nil target", func(t *testing.T) {
		require.Error(t, config.ShallowMergeYAML(nil, "x"))
	})
}
