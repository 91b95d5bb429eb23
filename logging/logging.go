// Package logging configures the global zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Level  string
	Format string // "console" or "json"
	File   string
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup replaces log.Logger. The returned closer flushes the log file, if any.
func Setup(opts Options, stderr io.Writer) (io.Closer, error) {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	if stderr == nil {
		stderr = os.Stderr
	}

	var out io.Writer = stderr
	if opts.Format != "json" {
		out = zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.RFC3339}
	}

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		file := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    100, // MB
			MaxBackups: 30,
			MaxAge:     90, // days
		}
		out = zerolog.MultiLevelWriter(out, file)
		closer = file
	}

	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(out).With().Timestamp().Caller().Logger()

	return closer, nil
}
