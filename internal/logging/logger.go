// Package logging builds the zerolog loggers used by the CLI and the cache.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// Output formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
	FormatAuto    = "auto"
)

// Output targets.
const (
	OutputStderr = "stderr"
	OutputStdout = "stdout"
	OutputFile   = "file"
)

const logFilePerm = 0o600

// Config describes where and how to log.
type Config struct {
	// Level is a zerolog level name. Unknown values fall back to info.
	Level string

	// Format is console, json or auto. Auto picks console when the target is a terminal.
	Format string

	// Output is stderr, stdout or file.
	Output string

	// File is the log file path used when Output is file.
	File string

	// Caller adds the source location to each event.
	Caller bool

	// Writer overrides the stderr/stdout target. Used by tests.
	Writer io.Writer
}

// LogPathResult is a logger plus what happened while opening its file.
type LogPathResult struct {
	Logger zerolog.Logger

	// UsingFile is true when events go to FilePath.
	UsingFile bool
	FilePath  string

	// FallbackUsed is true when the file could not be opened and stderr was used instead.
	FallbackUsed   bool
	FallbackReason string

	file *os.File
}

// Close releases the log file, if any.
func (r *LogPathResult) Close() error {
	if r == nil || r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// NewLogger builds a logger from cfg, discarding file-open details.
func NewLogger(cfg Config) zerolog.Logger {
	return NewLoggerWithPath(cfg).Logger
}

// NewLoggerWithPath builds a logger from cfg. When the log file cannot be
// opened the logger writes to stderr and the reason is recorded in the result.
func NewLoggerWithPath(cfg Config) LogPathResult {
	var result LogPathResult

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || cfg.Level == "" {
		lvl = zerolog.InfoLevel
	}

	var out io.Writer
	switch cfg.Output {
	case OutputFile:
		f, openErr := openLogFile(cfg.File)
		if openErr != nil {
			result.FallbackUsed = true
			result.FallbackReason = openErr.Error()
			out = stderrOr(cfg.Writer)
		} else {
			result.UsingFile = true
			result.FilePath = cfg.File
			result.file = f
			out = f
		}
	case OutputStdout:
		out = os.Stdout
		if cfg.Writer != nil {
			out = cfg.Writer
		}
	default:
		out = stderrOr(cfg.Writer)
	}

	if useConsole(cfg.Format, out, result.UsingFile) {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: !IsTerminal(out)}
	}

	ctx := zerolog.New(zerolog.MultiLevelWriter(out)).Level(lvl).With().Timestamp()
	if cfg.Caller {
		ctx = ctx.Caller()
	}
	result.Logger = ctx.Logger()

	return result
}

func openLogFile(path string) (*os.File, error) {
	if path == "" {
		return nil, fmt.Errorf("log output is %q but no file was configured", OutputFile)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, logFilePerm)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}

func stderrOr(w io.Writer) io.Writer {
	if w != nil {
		return w
	}
	return os.Stderr
}

func useConsole(format string, out io.Writer, toFile bool) bool {
	switch strings.ToLower(format) {
	case FormatConsole:
		return true
	case FormatJSON:
		return false
	default:
		return !toFile && IsTerminal(out)
	}
}

// IsTerminal reports whether v, a reader or writer, is a file descriptor
// attached to a terminal.
func IsTerminal(v any) bool {
	f, ok := v.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits in int on supported platforms
}

// ComponentLogger returns l tagged with component=name.
func ComponentLogger(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}

// FromContext returns the logger stored in ctx, or a disabled logger.
func FromContext(ctx context.Context) zerolog.Logger {
	if ctx == nil {
		return zerolog.Nop()
	}
	l := zerolog.Ctx(ctx)
	if l == nil || l.GetLevel() == zerolog.Disabled {
		return zerolog.Nop()
	}
	return *l
}

// PrintLogPathMessage tells the user where logs are going.
func PrintLogPathMessage(w io.Writer, path string) {
	_, _ = fmt.Fprintf(w, "Logging to %s\n", path)
}

// PrintFallbackWarning tells the user the log file could not be used.
func PrintFallbackWarning(w io.Writer, reason string) {
	_, _ = fmt.Fprintf(w, "Warning: could not open log file, logging to stderr (%s)\n", reason)
}
