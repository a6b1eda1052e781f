// Package logger wraps charmbracelet/log with the small set of option
// presets phrasestore's packages need, so every package logs through the
// same leveled, prefixed logger instead of reinventing one.
package logger

import (
	"os"

	"github.com/charmbracelet/log"
)

// New creates a logger with timestamps, prefixed with the caller's
// package name, at the global log level in effect when New is called;
// later log.SetLevel calls do not change it.
func New(prefix string) *log.Logger {
	return log.NewWithOptions(os.Stdout, log.Options{
		Prefix:          prefix,
		ReportCaller:    false,
		ReportTimestamp: true,
		Formatter:       log.TextFormatter,
		Level:           log.GetLevel(),
	})
}

// NewLogfmt creates a logger using the logfmt formatter, for deployments
// that pipe phrasestore's logs into a log aggregator rather than a
// terminal.
func NewLogfmt(prefix string) *log.Logger {
	return log.NewWithOptions(os.Stdout, log.Options{
		Prefix:          prefix,
		ReportCaller:    false,
		ReportTimestamp: true,
		Formatter:       log.LogfmtFormatter,
		Level:           log.GetLevel(),
	})
}

// NewWithConfig creates a logger with fully explicit options, for callers
// that need caller reporting or a custom formatter.
func NewWithConfig(prefix string, level log.Level, caller, showTimestamp bool, fmt log.Formatter) *log.Logger {
	return log.NewWithOptions(os.Stdout, log.Options{
		Prefix:          prefix,
		Level:           level,
		ReportCaller:    caller,
		ReportTimestamp: showTimestamp,
		Formatter:       fmt,
	})
}
