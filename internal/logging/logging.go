// Package logging builds the process logger shared by every component.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New returns a logger writing to stdout. format is "json" or "text"; text
// output is logfmt (level=info component=api msg=...).
func New(level, format string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			DisableColors:  true,
			FullTimestamp:  true,
			DisableQuote:   false,
			DisableSorting: false,
		})
	}

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		logger.WithField("component", "logging").Warnf("unknown log level %q; using info", level)
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)
	return logger
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
