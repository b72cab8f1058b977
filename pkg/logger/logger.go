package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options controls how the service logger is built.
type Options struct {
	Level   string
	Pretty  bool
	NoColor bool
	Output  io.Writer
}

// New returns the default console logger used before configuration is loaded.
func New() zerolog.Logger {
	return NewWithOptions(Options{Level: "info", Pretty: true})
}

func NewWithOptions(opts Options) zerolog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	if opts.Pretty {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			NoColor:    opts.NoColor,
		}
	}

	log := zerolog.New(out).
		With().
		Timestamp().
		Caller().
		Logger()

	return log.Level(parseLevel(opts.Level))
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
