package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global zerolog logger with the given level and format.
// If w is nil, os.Stderr is used. Format must be "console" or "json".
func Init(level, format string, w ...io.Writer) error {
	var writer io.Writer = os.Stderr
	if len(w) > 0 && w[0] != nil {
		writer = w[0]
	}

	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(lvl)

	switch format {
	case "json":
	case "", "console", "text":
		writer = zerolog.ConsoleWriter{
			Out:        writer,
			NoColor:    writer != os.Stderr,
			TimeFormat: time.TimeOnly,
		}
	default:
		return fmt.Errorf("unknown log format %q", format)
	}

	log.Logger = zerolog.New(writer).With().Timestamp().Logger()
	return nil
}

// ParseLevel accepts zerolog level names; empty means info.
func ParseLevel(level string) (zerolog.Level, error) {
	if level == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return lvl, nil
}

// New returns a logger with a "component" field for module-scoped logging.
func New(component string) zerolog.Logger {
	return log.Logger.With().Str("component", component).Logger()
}

// Nop is a disabled logger for callers that do not care about output.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
