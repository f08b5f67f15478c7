package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// -----------------------------------------------------------------------------

// Logger provides structured logging on top of zap.
type Logger struct {
	logger *zap.Logger
}

// Field holds one key-value pair to be written to the log entry.
type Field struct {
	Key   string
	Value any
}

// NewField returns a Field with the given key and value.
func NewField(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// -----------------------------------------------------------------------------

// NewLogger creates a named Logger. level is one of debug/info/warn/error;
// anything else falls back to info.
func NewLogger(name, level string) *Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	cfg.EncoderConfig.MessageKey = "message"

	z, err := cfg.Build()
	if err != nil {
		// Build only fails on invalid config paths; fall back to a no-op core
		// rather than crash the caller.
		z = zap.NewNop()
	}

	return &Logger{logger: z.Named(name)}
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug", "DEBUG":
		return zapcore.DebugLevel
	case "warn", "WARN", "warning", "WARNING":
		return zapcore.WarnLevel
	case "error", "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// -----------------------------------------------------------------------------

// Debug logs a debug message.
func (l *Logger) Debug(message string, fields ...Field) {
	l.logger.Debug(message, convertFields(fields...)...)
}

// Info logs an informational message.
func (l *Logger) Info(message string, fields ...Field) {
	l.logger.Info(message, convertFields(fields...)...)
}

// Warn logs a warning message.
func (l *Logger) Warn(message string, fields ...Field) {
	l.logger.Warn(message, convertFields(fields...)...)
}

// Error logs an error with optional context fields.
func (l *Logger) Error(err error, fields ...Field) {
	l.logger.Error(err.Error(), convertFields(fields...)...)
}

// Named returns a child logger with an extended name.
func (l *Logger) Named(name string) *Logger {
	return &Logger{logger: l.logger.Named(name)}
}

// WithFields returns a child logger carrying additional fields.
func (l *Logger) WithFields(fields ...Field) *Logger {
	return &Logger{logger: l.logger.With(convertFields(fields...)...)}
}

// Sync flushes buffered log entries.
func (l *Logger) Sync() error {
	return l.logger.Sync()
}

// -----------------------------------------------------------------------------

func convertFields(fields ...Field) []zapcore.Field {
	zapFields := make([]zapcore.Field, 0, len(fields))
	for _, field := range fields {
		zapFields = append(zapFields, zap.Any(field.Key, field.Value))
	}
	return zapFields
}
