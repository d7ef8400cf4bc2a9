// Package log provides the context scoped logrus logger used across the
// sandbox.
package log

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	rootLogger = logrus.NewEntry(logrus.StandardLogger())

	// L accesses the current logger from the context
	L = loggerFromContext
)

type ctxLogKey struct{}

// Config selects level, format and output of the root logger.
type Config struct {
	Level  string `json:"level,omitempty"`
	Format string `json:"format,omitempty"` // text or json
	Output string `json:"output,omitempty"` // stderr, stdout or discard
}

// InitConfig applies conf to the root logger.
func InitConfig(conf Config) {
	SetLevel(conf.Level)

	var out io.Writer = os.Stderr
	switch strings.ToLower(conf.Output) {
	case "stdout":
		out = os.Stdout
	case "discard":
		out = io.Discard
	}
	logrus.SetOutput(out)

	switch strings.ToLower(conf.Format) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{
			DisableColors: true,
			FullTimestamp: true,
		})
	}
}

// WithLogger adds the specified logger to the context
func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, ctxLogKey{}, logger)
}

// WithLogField adds the specified field to the logger in the context
func WithLogField(ctx context.Context, key, value string) context.Context {
	if len(value) > 61 {
		value = value[0:61] + "..."
	}
	return WithLogger(ctx, loggerFromContext(ctx).WithField(key, value))
}

func loggerFromContext(ctx context.Context) *logrus.Entry {
	if ctx == nil {
		return rootLogger
	}
	logger := ctx.Value(ctxLogKey{})
	if logger == nil {
		return rootLogger
	}
	return logger.(*logrus.Entry)
}

// IsDebugEnabled reports whether debug logging is on.
func IsDebugEnabled() bool {
	return logrus.IsLevelEnabled(logrus.DebugLevel)
}

// SetLevel sets the root level by name, defaulting to info.
func SetLevel(level string) {
	var l logrus.Level
	switch strings.ToLower(level) {
	case "error":
		l = logrus.ErrorLevel
	case "warn", "warning":
		l = logrus.WarnLevel
	case "debug":
		l = logrus.DebugLevel
	case "trace":
		l = logrus.TraceLevel
	default:
		l = logrus.InfoLevel
	}
	logrus.SetLevel(l)
}
