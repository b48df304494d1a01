// Package log provides structured logging for relay.
//
// Two logger variants are available:
//   - Logger: Non-sugared zap.Logger for dispatch paths (structured fields)
//   - SugaredLogger: Printf-style logging for third-party clients that
//     report through Logf/Errorf hooks (the PostHog client)
//
// Use Logger.Sugar() to obtain a SugaredLogger when needed.
package log

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger provides structured logging with service context.
// A nil *Logger is valid and discards everything.
type Logger struct {
	zap *zap.Logger
}

// SugaredLogger provides printf-style logging for SDK diagnostic hooks.
type SugaredLogger struct {
	sugar *zap.SugaredLogger
}

// Context identifies the process emitting log entries.
type Context struct {
	Service string
	AppName string
}

// NewLogger creates a new logger with service context.
// Output defaults to os.Stderr.
func NewLogger(ctx Context) *Logger {
	return newLoggerWithWriter(ctx, os.Stderr, zapcore.DebugLevel)
}

// NewLoggerAtLevel creates a logger on os.Stderr that drops entries below level.
func NewLoggerAtLevel(ctx Context, level zapcore.Level) *Logger {
	return newLoggerWithWriter(ctx, os.Stderr, level)
}

// NewLoggerTo creates a logger writing JSON entries at or above level to w.
func NewLoggerTo(ctx Context, w io.Writer, level zapcore.Level) *Logger {
	return newLoggerWithWriter(ctx, w, level)
}

// NewWithCore wraps an arbitrary zap core (tests use zaptest/observer).
func NewWithCore(core zapcore.Core) *Logger {
	return &Logger{zap: zap.New(core)}
}

// Nop returns a logger that discards all entries.
func Nop() *Logger {
	return &Logger{zap: zap.NewNop()}
}

// WithOutput returns a new logger with a different output writer.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig()),
		zapcore.AddSync(w),
		zapcore.DebugLevel,
	)
	return &Logger{zap: l.base().WithOptions(zap.WrapCore(func(zapcore.Core) zapcore.Core { return core }))}
}

// With returns a logger that adds fields to every entry.
func (l *Logger) With(fields map[string]any) *Logger {
	if len(fields) == 0 {
		return l
	}
	zf := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zf = append(zf, zap.Any(k, v))
	}
	return &Logger{zap: l.base().With(zf...)}
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}
}

// newLoggerWithWriter creates a logger writing to the specified writer.
func newLoggerWithWriter(ctx Context, w io.Writer, level zapcore.Level) *Logger {
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig()),
		zapcore.AddSync(w),
		level,
	)

	var contextFields []zap.Field
	if ctx.Service != "" {
		contextFields = append(contextFields, zap.String("service", ctx.Service))
	}
	if ctx.AppName != "" {
		contextFields = append(contextFields, zap.String("app_name", ctx.AppName))
	}

	return &Logger{zap: zap.New(core).With(contextFields...)}
}

func (l *Logger) base() *zap.Logger {
	if l == nil || l.zap == nil {
		return zap.NewNop()
	}
	return l.zap
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, fields map[string]any) {
	l.base().Debug(message, zap.Any("fields", fields))
}

// Info logs an info message.
func (l *Logger) Info(message string, fields map[string]any) {
	l.base().Info(message, zap.Any("fields", fields))
}

// Warn logs a warning message.
func (l *Logger) Warn(message string, fields map[string]any) {
	l.base().Warn(message, zap.Any("fields", fields))
}

// Error logs an error message.
func (l *Logger) Error(message string, fields map[string]any) {
	l.base().Error(message, zap.Any("fields", fields))
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.base().Sync()
}

// Sugar returns a SugaredLogger for printf-style logging.
func (l *Logger) Sugar() *SugaredLogger {
	return &SugaredLogger{sugar: l.base().Sugar()}
}

// Debugf logs a debug message with printf-style formatting.
func (s *SugaredLogger) Debugf(template string, args ...any) {
	s.sugar.Debugf(template, args...)
}

// Warnf logs a warning message with printf-style formatting.
func (s *SugaredLogger) Warnf(template string, args ...any) {
	s.sugar.Warnf(template, args...)
}

// With returns a SugaredLogger with additional context fields.
func (s *SugaredLogger) With(args ...any) *SugaredLogger {
	return &SugaredLogger{sugar: s.sugar.With(args...)}
}
