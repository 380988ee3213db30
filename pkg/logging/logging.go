// Package logging builds the logrus logger shared by the pipeline and CLI.
package logging

import (
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
)

// New creates a logger writing to out at the named level ("debug", "info",
// "warn", "error"). format is "text" or "json".
func New(out io.Writer, level, format string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	logger := log.New()
	logger.Out = out
	logger.Level = lvl

	switch format {
	case "json":
		logger.Formatter = &log.JSONFormatter{}
	case "text", "":
		logger.Formatter = &log.TextFormatter{FullTimestamp: true}
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	return logger, nil
}

// Discard returns a logger that drops every entry.
func Discard() *log.Logger {
	logger := log.New()
	logger.Out = io.Discard
	return logger
}
