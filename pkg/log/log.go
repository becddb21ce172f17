// Package log configures the process-wide structured logger. Library code
// stays silent; binaries call Setup once and log through the returned
// zerolog.Logger.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

// Standard field keys, kept consistent so logs can be filtered per run.
const (
	ComponentKey = "component"
	StepKey      = "step"
	LossKey      = "loss"
	AccuracyKey  = "accuracy"
	DurationKey  = "duration_ms"
)

// Setup builds a logger writing to w at the given level. Error values carry
// stack traces from cockroachdb/errors through the pkgerrors marshaler.
func Setup(w io.Writer, level zerolog.Level) zerolog.Logger {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Console returns a human-readable logger for interactive use.
func Console(level zerolog.Level) zerolog.Logger {
	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	return Setup(w, level)
}
