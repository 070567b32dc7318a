// Package logging builds the diagnostic logger and writes the playback session report.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// DefaultLevel keeps the console quiet unless something goes wrong.
const DefaultLevel = zerolog.WarnLevel

// Config captures options for the diagnostic logger.
type Config struct {
	Level   string    // optional log level ("debug", "info", etc.)
	Output  io.Writer // optional writer (defaults to os.Stderr)
	Console bool      // human-readable output instead of JSON
}

// New returns a logger for cfg. An unknown level falls back to DefaultLevel.
func New(cfg Config) zerolog.Logger {
	level := DefaultLevel
	if cfg.Level != "" {
		if parsed, err := zerolog.ParseLevel(cfg.Level); err == nil {
			level = parsed
		}
	}

	writer := cfg.Output
	if writer == nil {
		writer = os.Stderr
	}
	if cfg.Console {
		writer = zerolog.ConsoleWriter{Out: writer, TimeFormat: time.TimeOnly}
	}

	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

// WithComponent returns a child logger annotated with the given component name.
func WithComponent(l zerolog.Logger, component string) zerolog.Logger {
	return l.With().Str("component", component).Logger()
}
