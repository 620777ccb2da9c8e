// Package log provides the process-wide structured logger for hoard.
//
// Grounded on the teacher pack's own pkg/log convention (a package-level
// zerolog.Logger initialized once at startup, with component-scoped child
// loggers handed out to subsystems), hoard keeps a single global Logger
// rather than threading a logger through every constructor: the write
// coordinator, lock primitives, and worker lease all log from goroutines
// that do not otherwise carry a request-scoped context.
package log

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance. Safe for concurrent use once Init
// has returned; Init itself must be called exactly once, before any
// goroutine that logs is started.
var Logger zerolog.Logger

// Level mirrors the configuration surface's logging.level values.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration, populated from internal/config.
type Config struct {
	Level  Level
	JSON   bool
	Output io.Writer
}

func init() {
	// A usable default before Init runs, so early-startup errors (e.g.
	// config load failures) still print something readable.
	Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}

// Init replaces the global Logger per cfg.
func Init(cfg Config) {
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
	zerolog.SetGlobalLevel(level)

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	if cfg.JSON {
		Logger = zerolog.New(out).With().Timestamp().Logger()
		return
	}
	Logger = zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
}

// Component returns a child logger tagged with the owning subsystem, e.g.
// log.Component("coordinator").
func Component(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}
