package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/rshade/kvcache/pkg/kvcache"
)

func TestFormatBytes(t *testing.T) {
	p := message.NewPrinter(language.English)

	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1,023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
		{3 * 1024 * 1024 * 1024, "3.0 GiB"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatBytes(p, tt.in))
		})
	}
}

func TestRenderReport(t *testing.T) {
	s := kvcache.Stats{
		Store:         "/srv/cache",
		MemoryEntries: 3,
		DiskEntries:   12345,
		DiskBytes:     2048,
		Expired:       2,
	}

	t.Run("Plain", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, renderReport(&buf, "STORE", statsRows(s), false))

		lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
		require.Len(t, lines, 8)
		assert.Equal(t, "STORE", lines[0])
		assert.Equal(t, "=====", lines[1])
		assert.Contains(t, lines[2], "/srv/cache")
		assert.Contains(t, lines[4], "12,345")
		assert.Contains(t, lines[5], "2.0 KiB")
	})

	t.Run("Styled", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, renderReport(&buf, "EXPIRY SWEEP", sweepRows(kvcache.SweepResult{
			FilesScanned: 1500,
			FilesRemoved: 7,
			Duration:     1234 * time.Microsecond,
		}), true))

		out := buf.String()
		assert.Contains(t, out, "EXPIRY SWEEP")
		assert.Contains(t, out, "1,500")
		assert.Contains(t, out, "1ms")
		assert.Contains(t, out, "╭", "rounded border")
	})
}

func TestFormatProgress(t *testing.T) {
	got := formatProgress(kvcache.SweepProgress{
		Processed: 1500,
		Total:     6000,
		Percent:   25,
		Rate:      800.4,
		Elapsed:   time.Second,
	})
	assert.Equal(t, "swept 1,500/6,000 files (25%, 800 files/s)", got)
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"  yes  \n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"sure\n", false},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			var out bytes.Buffer
			got := confirm(&out, strings.NewReader(tt.input), "Delete everything?")
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "? Delete everything? [y/N] ", out.String())
		})
	}
}

func TestParseKeyValue(t *testing.T) {
	k, err := parseKey(`{"user":42}`, true)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"user": float64(42)}, k)

	k, err = parseKey(`{"user":42}`, false)
	require.NoError(t, err)
	assert.Equal(t, `{"user":42}`, k)

	v, err := parseValue(`[1,"two",null]`, true)
	require.NoError(t, err)
	assert.Equal(t, []any{float64(1), "two", nil}, v)

	v, err = parseValue("null", true)
	require.NoError(t, err)
	assert.Nil(t, v)
}
