// Package logging builds the zerolog logger shared by the service.
package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// New returns a logger writing to w. format "console" produces human readable
// output, anything else JSON lines. Unknown levels fall back to info.
func New(w io.Writer, level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	out := w
	if format == "console" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Str("service", "triplan").Logger()
}
