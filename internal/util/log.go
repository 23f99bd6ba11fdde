package util

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the process-wide zerolog logger. Unknown levels fall
// back to info rather than failing startup.
func NewLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger().Level(lvl)
}

// NewConsoleLogger is the dev-mode variant: human-readable output for
// running the scanner in a terminal.
func NewConsoleLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.TimeOnly}
	return zerolog.New(writer).With().Timestamp().Logger().Level(lvl)
}

// Component tags a child logger so every line names the subsystem it
// came from.
func Component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
