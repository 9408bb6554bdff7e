package logging

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerWithPath(t *testing.T) {
	t.Run("JSONToWriter", func(t *testing.T) {
		var buf bytes.Buffer
		result := NewLoggerWithPath(Config{Level: "debug", Format: FormatJSON, Writer: &buf})
		require.False(t, result.UsingFile)

		result.Logger.Debug().Str("k", "v").Msg("hello")
		assert.Contains(t, buf.String(), `"message":"hello"`)
		assert.Contains(t, buf.String(), `"k":"v"`)
		assert.Contains(t, buf.String(), `"time"`)
	})

	t.Run("ConsoleFormat", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewLogger(Config{Format: FormatConsole, Writer: &buf})
		l.Info().Msg("plain text")
		assert.Contains(t, buf.String(), "plain text")
		assert.NotContains(t, buf.String(), `"message"`)
	})

	t.Run("AutoIsJSONForNonTerminal", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewLogger(Config{Format: FormatAuto, Writer: &buf})
		l.Info().Msg("x")
		assert.Contains(t, buf.String(), `"message":"x"`)
	})

	t.Run("LevelFilter", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewLogger(Config{Level: "warn", Format: FormatJSON, Writer: &buf})
		l.Info().Msg("dropped")
		l.Warn().Msg("kept")
		assert.NotContains(t, buf.String(), "dropped")
		assert.Contains(t, buf.String(), "kept")
	})

	t.Run("InvalidLevelDefaultsToInfo", func(t *testing.T) {
		l := NewLogger(Config{Level: "loud", Writer: &bytes.Buffer{}})
		assert.Equal(t, zerolog.InfoLevel, l.GetLevel())
	})

	t.Run("File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "kvcache.log")
		result := NewLoggerWithPath(Config{Output: OutputFile, File: path})
		require.True(t, result.UsingFile)
		assert.Equal(t, path, result.FilePath)

		result.Logger.Info().Msg("to file")
		require.NoError(t, result.Close())
		require.NoError(t, result.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"message":"to file"`)
	})

	t.Run("FileFallback", func(t *testing.T) {
		var buf bytes.Buffer
		result := NewLoggerWithPath(Config{Output: OutputFile, Format: FormatJSON, Writer: &buf})
		assert.True(t, result.FallbackUsed)
		assert.False(t, result.UsingFile)
		assert.NotEmpty(t, result.FallbackReason)

		result.Logger.Info().Msg("fallback")
		assert.Contains(t, buf.String(), "fallback")
	})
}

func TestComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	l := ComponentLogger(NewLogger(Config{Format: FormatJSON, Writer: &buf}), "storage")
	l.Info().Msg("x")
	assert.Contains(t, buf.String(), `"component":"storage"`)
}

func TestFromContext(t *testing.T) {
	assert.Equal(t, zerolog.Disabled, FromContext(context.Background()).GetLevel())

	var buf bytes.Buffer
	l := NewLogger(Config{Format: FormatJSON, Writer: &buf})
	ctx := l.WithContext(context.Background())
	log := FromContext(ctx)
	log.Info().Msg("from ctx")
	assert.Contains(t, buf.String(), "from ctx")
}

func TestTraceID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, TraceIDFromContext(ctx))

	generated := GetOrGenerateTraceID(ctx)
	assert.Len(t, generated, 26)

	ctx = ContextWithTraceID(ctx, "abc")
	assert.Equal(t, "abc", TraceIDFromContext(ctx))
	assert.Equal(t, "abc", GetOrGenerateTraceID(ctx))
}

func TestIsTerminal(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()

	tests := []struct {
		name string
		v    any
	}{
		{"buffer", &bytes.Buffer{}},
		{"reader", strings.NewReader("")},
		{"regular file", f},
		{"nil", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, IsTerminal(tt.v))
		})
	}
}

func TestPrintMessages(t *testing.T) {
	var buf bytes.Buffer
	PrintLogPathMessage(&buf, "/tmp/x.log")
	PrintFallbackWarning(&buf, "denied")
	assert.Contains(t, buf.String(), "Logging to /tmp/x.log")
	assert.Contains(t, buf.String(), "denied")
}
