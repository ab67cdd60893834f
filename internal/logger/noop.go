package logger

// NoOpLogger is a logger that does nothing. Used in tests.
type NoOpLogger struct{}

// NewNoOp creates a new no-op logger instance.
func NewNoOp() Interface {
	return &NoOpLogger{}
}

// Debug discards the message.
func (l *NoOpLogger) Debug(msg string, fields ...any) {}

// Info discards the message.
func (l *NoOpLogger) Info(msg string, fields ...any) {}

// Warn discards the message.
func (l *NoOpLogger) Warn(msg string, fields ...any) {}

// Error discards the message.
func (l *NoOpLogger) Error(msg string, fields ...any) {}

// With returns the same no-op logger.
func (l *NoOpLogger) With(fields ...any) Interface { return l }
