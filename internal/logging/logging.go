// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init sets the global logger for the named service.  In dev a colored
// console writer is used, otherwise one JSON object per line.
func Init(service, env string) zerolog.Logger {
	return InitWriter(os.Stderr, service, env)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, service, env string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	level := zerolog.InfoLevel
	out := w
	if env == "dev" || env == "" {
		level = zerolog.DebugLevel
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	if lvl, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && lvl != zerolog.NoLevel {
		level = lvl
	}
	logger := zerolog.New(out).Level(level).With().Timestamp().Str("service", service).Logger()
	log.Logger = logger
	zerolog.DefaultContextLogger = &logger
	return logger
}
