// Package logx configures the process-wide zerolog logger that every other
// package writes through the global zerolog/log instance.
package logx

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config selects verbosity and output format, bound from LOGGER_* env vars.
type Config struct {
	Debug        bool `split_words:"true" default:"false"`
	PrettyFormat bool `split_words:"true" default:"false"`
}

// Init replaces the global logger. JSON to stdout by default; the pretty
// console writer is meant for local runs.
func Init(cfg Config) {
	var w io.Writer = os.Stdout
	if cfg.PrettyFormat {
		w = zerolog.NewConsoleWriter()
	}

	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}

	log.Logger = zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Caller().
		Stack().
		Logger()
}
