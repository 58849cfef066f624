// Package logging configures the process-wide zerolog logger used by the
// runner. Output goes to stderr so the supervised command keeps stdout.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// EnvLevel names the environment variable consulted when no level is given.
const EnvLevel = "PROCWARDEN_LOG"

// Format selects the encoding of log lines.
type Format string

const (
	FormatAuto    Format = ""
	FormatJSON    Format = "json"
	FormatConsole Format = "console"
)

// Config captures options for configuring the global logger.
type Config struct {
	Level  string    // optional log level ("debug", "info", etc.)
	Output io.Writer // optional writer (defaults to os.Stderr)
	Format Format
}

var (
	mu   sync.Mutex
	base = zerolog.New(io.Discard)
)

// Configure replaces the global logger. Calling it again reconfigures.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()

	level := zerolog.WarnLevel
	raw := cfg.Level
	if raw == "" {
		raw = os.Getenv(EnvLevel)
	}
	if raw != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(raw))); err == nil {
			level = parsed
		}
	}

	writer := cfg.Output
	if writer == nil {
		writer = os.Stderr
	}

	switch resolveFormat(cfg.Format, writer) {
	case FormatConsole:
		writer = zerolog.ConsoleWriter{Out: writer, TimeFormat: time.TimeOnly}
	default:
		zerolog.TimeFieldFormat = time.RFC3339Nano
	}

	base = zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

func resolveFormat(format Format, w io.Writer) Format {
	if format != FormatAuto {
		return format
	}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return FormatConsole
	}
	return FormatJSON
}

// L returns the configured base logger. Before Configure is called it
// discards everything so library code stays silent in tests.
func L() *zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	l := base
	return &l
}

// WithComponent returns a child logger annotated with the given component name.
func WithComponent(component string) zerolog.Logger {
	return L().With().Str(FieldComponent, component).Logger()
}
