package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

const (
	LOG_INFO  = "info"
	LOG_DEBUG = "debug"
	LOG_WARN  = "warn"
	LOG_ERROR = "error"
)

var logger zerolog.Logger

func init() {
	// Silent by default; commands that want output enable it explicitly.
	SetSilentMode(true)
	SetLevel(os.Getenv("DILA_LOG"))
}

// SetSilentMode switches between no output and console output on stderr.
func SetSilentMode(silent bool) {
	var output io.Writer = io.Discard
	if !silent {
		output = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}
	}
	logger = zerolog.New(output).With().Timestamp().Logger()
}

// New returns the process logger.
func New() zerolog.Logger {
	return logger
}

// With returns a logger tagged with a component name.
func With(component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}

// SetLevel sets the global log level. Unknown levels fall back to info.
func SetLevel(level string) {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
}
