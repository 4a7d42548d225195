// Package logging builds the process logger
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New returns a timestamped JSON logger writing to stdout. Unknown levels
// fall back to info.
func New(level string) zerolog.Logger {
	return NewWriter(os.Stdout, level)
}

// NewWriter is New with an explicit destination
func NewWriter(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}
