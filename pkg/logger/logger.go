package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level mirrors zap levels with the two values callers actually select.
type Level = zapcore.Level

const (
	DEBUG Level = zapcore.DebugLevel
	INFO  Level = zapcore.InfoLevel
)

var (
	mu     sync.RWMutex
	atom   = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	logger = newLogger()
)

func newLogger() *zap.Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg := zap.Config{
		Level:            atom,
		Encoding:         "console",
		EncoderConfig:    encCfg,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	l, err := cfg.Build(zap.AddStacktrace(zapcore.FatalLevel))
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// SetLevel switches the global log level (typically to DEBUG via --debug).
func SetLevel(level Level) {
	atom.SetLevel(level)
}

func fieldsOf(component string, fields map[string]interface{}) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+1)
	out = append(out, zap.String("component", component))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}

func get() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// DebugC logs a component-scoped debug message.
func DebugC(component, msg string) {
	get().Debug(msg, zap.String("component", component))
}

// DebugCF logs a component-scoped debug message with structured fields.
func DebugCF(component, msg string, fields map[string]interface{}) {
	get().Debug(msg, fieldsOf(component, fields)...)
}

func InfoC(component, msg string) {
	get().Info(msg, zap.String("component", component))
}

func InfoCF(component, msg string, fields map[string]interface{}) {
	get().Info(msg, fieldsOf(component, fields)...)
}

func WarnC(component, msg string) {
	get().Warn(msg, zap.String("component", component))
}

func WarnCF(component, msg string, fields map[string]interface{}) {
	get().Warn(msg, fieldsOf(component, fields)...)
}

func ErrorC(component, msg string) {
	get().Error(msg, zap.String("component", component))
}

func ErrorCF(component, msg string, fields map[string]interface{}) {
	get().Error(msg, fieldsOf(component, fields)...)
}

// Sync flushes buffered log entries. Safe to call at shutdown.
func Sync() {
	_ = get().Sync()
}
