// Package realmlog configures the structured logger the realm service and
// its CLI front end share.
package realmlog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Level is a recognized logging verbosity.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config configures New.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// New builds a zerolog.Logger from cfg. A zero Config produces an
// info-level, human-readable logger to stdout.
func New(cfg Config) zerolog.Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	}

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	base := zerolog.New(output).Level(level).With().Timestamp()
	if cfg.JSONOutput {
		return base.Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{
		Out:        output,
		TimeFormat: time.RFC3339,
	}).Level(level).With().Timestamp().Logger()
}

// WithRealm returns a child logger tagging every entry with the realm id.
func WithRealm(l zerolog.Logger, realmID string) zerolog.Logger {
	return l.With().Str("realm", realmID).Logger()
}
