// Package log configures the global zerolog logger and renders progress
// for long scans.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// Options controls logger setup
type Options struct {
	Level  string    `yaml:"level"`
	Format string    `yaml:"format"` // auto, console or json
	Out    io.Writer `yaml:"-"`
}

// DefaultOptions logs at info to stderr, console when attached to a terminal
func DefaultOptions() Options {
	return Options{Level: "info", Format: "auto", Out: os.Stderr}
}

// Setup replaces the global logger according to opts
func Setup(opts Options) error {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	var w io.Writer
	switch opts.Format {
	case "json":
		w = out
	case "console":
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	case "", "auto":
		if IsTerminal(out) {
			w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
		} else {
			w = out
		}
	default:
		return fmt.Errorf("invalid log format %q", opts.Format)
	}

	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return nil
}

// IsTerminal reports whether w is a terminal file descriptor
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
