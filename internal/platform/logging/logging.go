// Package logging builds the process logger: JSON to stdout (console
// output in development) with an optional rotating file sink.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options mirrors the LOG_* configuration keys.
type Options struct {
	Level      string
	Dev        bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New returns a logger that fans out to stdout and, when File is set, to a
// lumberjack-rotated file. The file always receives JSON.
func New(opts Options) zerolog.Logger {
	return NewWithWriter(os.Stdout, opts)
}

// NewWithWriter is New with an explicit console writer.
func NewWithWriter(out io.Writer, opts Options) zerolog.Logger {
	var console io.Writer = out
	if opts.Dev {
		console = zerolog.ConsoleWriter{Out: out}
	}

	writers := []io.Writer{console}
	if opts.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 100),
			MaxBackups: orDefault(opts.MaxBackups, 5),
			MaxAge:     orDefault(opts.MaxAgeDays, 30),
			Compress:   true,
		})
	}

	var w io.Writer = writers[0]
	if len(writers) > 1 {
		w = zerolog.MultiLevelWriter(writers...)
	}

	return zerolog.New(w).Level(ParseLevel(opts.Level)).With().Timestamp().Logger()
}

// ParseLevel maps a LOG_LEVEL value onto a zerolog level. Unknown values
// fall back to info.
func ParseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || s == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
