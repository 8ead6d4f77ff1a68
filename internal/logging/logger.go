// Package logging configures the global zerolog logger and emits the
// structured cold-start summary.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init sets the global level (debug, info, warn, error; default info) and
// output format. "console" gives human-readable output on stderr for the
// CLI; anything else writes JSON to stdout, which is what CloudWatch
// expects.
func Init(level, format string) {
	zerolog.SetGlobalLevel(ParseLevel(level))
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var w io.Writer = os.Stdout
	if strings.EqualFold(format, "console") {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}

// ParseLevel maps a level name to a zerolog level.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
