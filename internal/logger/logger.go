// Package logger provides structured logging for the application.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Interface defines the logger contract used across the application.
type Interface interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)
	With(fields ...any) Interface
}

// Config holds logger configuration.
type Config struct {
	Level    string // debug, info, warn, error
	Encoding string // console or json
}

// Logger implements Interface on top of zap.
type Logger struct {
	zapLogger *zap.SugaredLogger
}

// logLevels maps string levels to zapcore levels.
var logLevels = map[string]zapcore.Level{
	"debug": zapcore.DebugLevel,
	"info":  zapcore.InfoLevel,
	"warn":  zapcore.WarnLevel,
	"error": zapcore.ErrorLevel,
}

// New creates a new logger instance.
func New(cfg Config) (Interface, error) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Encoding == "" {
		cfg.Encoding = "console"
	}

	level, ok := logLevels[cfg.Level]
	if !ok {
		return nil, fmt.Errorf("unknown log level %q", cfg.Level)
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.Encoding = cfg.Encoding
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder

	if cfg.Encoding == "console" {
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		zapCfg.EncoderConfig.ConsoleSeparator = " | "
	}

	zl, err := zapCfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return &Logger{zapLogger: zl.Sugar()}, nil
}

// Debug logs a debug message with key-value pairs.
func (l *Logger) Debug(msg string, fields ...any) {
	l.zapLogger.Debugw(msg, fields...)
}

// Info logs an info message with key-value pairs.
func (l *Logger) Info(msg string, fields ...any) {
	l.zapLogger.Infow(msg, fields...)
}

// Warn logs a warning message with key-value pairs.
func (l *Logger) Warn(msg string, fields ...any) {
	l.zapLogger.Warnw(msg, fields...)
}

// Error logs an error message with key-value pairs.
func (l *Logger) Error(msg string, fields ...any) {
	l.zapLogger.Errorw(msg, fields...)
}

// With returns a logger with the given key-value pairs attached.
func (l *Logger) With(fields ...any) Interface {
	return &Logger{zapLogger: l.zapLogger.With(fields...)}
}
