// Package logger provides logging implementations for userdb
package logger

import (
	"os"
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nive-cms/userdb/pkg/interfaces"
)

// ZapLogger adapts a zap.Logger to interfaces.Logger
type ZapLogger struct {
	Level string
	zl    *zap.Logger
}

var _ interfaces.Logger = (*ZapLogger)(nil)

// Debug logs debug level messages
func (l *ZapLogger) Debug(msg string, fields ...map[string]interface{}) {
	l.zl.Debug(msg, toZapFields(fields...)...)
}

// Info logs info level messages
func (l *ZapLogger) Info(msg string, fields ...map[string]interface{}) {
	l.zl.Info(msg, toZapFields(fields...)...)
}

// Warn logs warning level messages
func (l *ZapLogger) Warn(msg string, fields ...map[string]interface{}) {
	l.zl.Warn(msg, toZapFields(fields...)...)
}

// Error logs error level messages
func (l *ZapLogger) Error(msg string, err error, fields ...map[string]interface{}) {
	zf := toZapFields(fields...)
	if err != nil {
		zf = append(zf, zap.Error(err))
	}
	l.zl.Error(msg, zf...)
}

// Fatal logs fatal level messages and exits
func (l *ZapLogger) Fatal(msg string, err error, fields ...map[string]interface{}) {
	zf := toZapFields(fields...)
	if err != nil {
		zf = append(zf, zap.Error(err))
	}
	l.zl.Fatal(msg, zf...)
}

// WithFields returns a logger with additional fields
func (l *ZapLogger) WithFields(fields map[string]interface{}) interfaces.Logger {
	return &ZapLogger{
		Level: l.Level,
		zl:    l.zl.With(toZapFields(fields)...),
	}
}

// Zap exposes the underlying zap logger
func (l *ZapLogger) Zap() *zap.Logger {
	return l.zl
}

// Sync flushes buffered log entries
func (l *ZapLogger) Sync() error {
	return l.zl.Sync()
}

// toZapFields flattens field maps in key order so output is stable
func toZapFields(fields ...map[string]interface{}) []zap.Field {
	var out []zap.Field
	for _, fieldMap := range fields {
		keys := make([]string, 0, len(fieldMap))
		for k := range fieldMap {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = append(out, zap.Any(k, fieldMap[k]))
		}
	}
	return out
}

// ParseLevel maps a level name to a zap level, defaulting to info
func ParseLevel(level string) zapcore.Level {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel
	}
	return l
}

// NewConsoleLogger creates a new console logger
func NewConsoleLogger(level string) interfaces.Logger {
	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.Lock(os.Stderr),
		ParseLevel(level),
	)
	return &ZapLogger{Level: level, zl: zap.New(core)}
}

// NewJSONLogger creates a production logger writing JSON to the given file,
// or to stderr when file is empty
func NewJSONLogger(level, file string) (interfaces.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(ParseLevel(level))
	if file != "" {
		cfg.OutputPaths = []string{file}
	}
	zl, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &ZapLogger{Level: level, zl: zl}, nil
}

// NewFromZap wraps an existing zap logger
func NewFromZap(zl *zap.Logger) interfaces.Logger {
	if zl == nil {
		zl = zap.NewNop()
	}
	return &ZapLogger{Level: zl.Level().String(), zl: zl}
}

// NewTestLogger creates a logger for testing
func NewTestLogger() interfaces.Logger {
	return NewConsoleLogger("debug")
}

// NewNopLogger creates a logger that discards everything
func NewNopLogger() interfaces.Logger {
	return &ZapLogger{Level: "fatal", zl: zap.NewNop()}
}

// NewLogger creates a new logger with default settings
func NewLogger() interfaces.Logger {
	return NewConsoleLogger("info")
}
