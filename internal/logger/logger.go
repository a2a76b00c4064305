// Package logger builds the zerolog loggers used across the service.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Level represents log level
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
	Location   *time.Location
}

// New creates a logger writing to cfg.Output (stdout when nil).
func New(cfg Config) zerolog.Logger {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}
	if !cfg.JSONOutput {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	return zerolog.New(output).
		Level(level).
		Hook(tsHook{loc: loc})
}

// FromDebug returns the logger configuration implied by the debug flag:
// console output at debug level, or JSON at info level.
func FromDebug(debug bool, loc *time.Location) Config {
	if debug {
		return Config{Level: DebugLevel, JSONOutput: false, Location: loc}
	}
	return Config{Level: InfoLevel, JSONOutput: true, Location: loc}
}

// WithComponent creates a child logger with component field
func WithComponent(l zerolog.Logger, component string) zerolog.Logger {
	return l.With().Str("component", component).Logger()
}

// Nop returns a disabled logger.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

// tsHook stamps every event with a "ts" field in the configured time zone.
type tsHook struct {
	loc *time.Location
}

func (h tsHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	e.Str("ts", time.Now().In(h.loc).Format(time.RFC3339Nano))
}
