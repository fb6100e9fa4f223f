// Package logger builds the zap loggers used across the organize core.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level defines the verbosity of logging.
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// New creates a zap logger with the specified log level.
func New(level Level) *zap.Logger {
	var config zap.Config

	switch level {
	case LevelError:
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	case LevelWarn:
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case LevelDebug:
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, _ := config.Build()
	return logger
}

// OrNop returns l unchanged, or a no-op logger when l is nil. Components
// accept an optional logger and call this once at construction.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
