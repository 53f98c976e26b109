// Package logging builds the process logger. Logs go to a file or nowhere so
// they never interleave with the terminal UI.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New returns a JSON logger writing to path. An empty path yields a
// disabled logger.
func New(path string, debug bool) (zerolog.Logger, io.Closer, error) {
	if path == "" {
		return zerolog.Nop(), nopCloser{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("open log file: %w", err)
	}
	return NewWriter(f, debug), f, nil
}

// NewWriter returns a logger writing to w.
func NewWriter(w io.Writer, debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	return zerolog.New(w).Level(level).With().Timestamp().Str("app", "term-assistant").Logger()
}
