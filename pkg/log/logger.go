// Package log configures the application logger.
package log

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New builds a console logger writing to w. Debug enables debug-level
// output; otherwise the level is info.
func New(w io.Writer, debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.DateTime,
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

// NewContextWithLogger installs a console logger on the context and as the
// process-global logger.
func NewContextWithLogger(ctx context.Context, debug bool) context.Context {
	logger := New(os.Stderr, debug)
	log.Logger = logger
	return logger.WithContext(ctx)
}

// FromCtx returns the logger stored on the context, or the global logger.
func FromCtx(ctx context.Context) *zerolog.Logger {
	return log.Ctx(ctx)
}
