// Package logging provides context-aware structured logging for the
// pipeline, backed by logrus.
package logging

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"
)

// L is the global logger entry, used when no logger is found in context.
var L = logrus.NewEntry(newLogger())

type loggerKey struct{}

// WithLogger attaches a logger entry to the context.
func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger.WithContext(ctx))
}

// FromContext retrieves the logger entry from the context, falling back
// to the global entry.
func FromContext(ctx context.Context) *logrus.Entry {
	if logger, ok := ctx.Value(loggerKey{}).(*logrus.Entry); ok {
		return logger
	}
	return L.WithContext(ctx)
}

// SetLevel sets the global log level from its string form.
func SetLevel(level string) error {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	L.Logger.SetLevel(parsed)
	return nil
}

// SetOutput redirects global logger output.
func SetOutput(w io.Writer) {
	L.Logger.SetOutput(w)
}

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	l.SetLevel(logrus.WarnLevel)
	return l
}
