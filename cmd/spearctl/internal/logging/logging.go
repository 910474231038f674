// Package logging builds the diagnostic logger of spearctl. User-facing
// output goes through pterm; this logger only carries diagnostics.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options select where diagnostics go.
type Options struct {
	// File is a rotated log file. It takes precedence over Debug.
	File  string
	Debug bool
}

// New returns the logger and a closer for its sink. Without a file and
// without debug, diagnostics are discarded.
func New(opts Options) (*log.Logger, io.Closer) {
	switch {
	case opts.File != "":
		sink := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		return log.New(sink, "[spearctl] ", log.LstdFlags|log.Lmicroseconds), sink
	case opts.Debug:
		return log.New(os.Stderr, "[spearctl] ", log.LstdFlags), nopCloser{}
	default:
		return log.New(io.Discard, "", 0), nopCloser{}
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
