package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger and installs it as zap's global so packages
// can fall back to zap.L().
func New(level string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if strings.EqualFold(level, "debug") {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	config.EncoderConfig.TimeKey = "ts"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := config.Build()
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(l)
	return l, nil
}

// Named returns the first non-nil logger from opt, or the global one, under name.
func Named(name string, opt ...*zap.Logger) *zap.Logger {
	if len(opt) > 0 && opt[0] != nil {
		return opt[0].Named(name)
	}
	return zap.L().Named(name)
}
