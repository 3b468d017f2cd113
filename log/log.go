package log

import (
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

var current atomic.Pointer[zap.SugaredLogger]

func init() {
	l, err := newLogger(InfoLevel, false)
	if err != nil {
		l = zap.NewNop()
	}
	current.Store(l.Sugar())
}

// Configure replaces the process logger. Unknown levels fall back to info.
func Configure(level string, json bool) error {
	l, err := newLogger(Level(strings.ToLower(strings.TrimSpace(level))), json)
	if err != nil {
		return err
	}
	current.Store(l.Sugar())
	return nil
}

// SetLogger installs an already built zap logger (tests use zap.NewNop()).
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	current.Store(l.Sugar())
}

// Logger returns the underlying zap logger for components that take one by injection.
func Logger() *zap.Logger {
	return current.Load().Desugar()
}

func Debug(msg string, keysAndValues ...interface{}) {
	current.Load().Debugw(msg, keysAndValues...)
}

func Info(msg string, keysAndValues ...interface{}) {
	current.Load().Infow(msg, keysAndValues...)
}

func Warn(msg string, keysAndValues ...interface{}) {
	current.Load().Warnw(msg, keysAndValues...)
}

func Error(msg string, keysAndValues ...interface{}) {
	current.Load().Errorw(msg, keysAndValues...)
}

func Fatal(msg string, keysAndValues ...interface{}) {
	current.Load().Fatalw(msg, keysAndValues...)
}

// Log writes at a level chosen at runtime, e.g. from a retry.Config.
func Log(level Level, msg string, keysAndValues ...interface{}) {
	switch level {
	case DebugLevel:
		Debug(msg, keysAndValues...)
	case WarnLevel:
		Warn(msg, keysAndValues...)
	case ErrorLevel:
		Error(msg, keysAndValues...)
	default:
		Info(msg, keysAndValues...)
	}
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func newLogger(level Level, json bool) (*zap.Logger, error) {
	var cfg zap.Config
	if json {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.DisableStacktrace = true
	}
	cfg.Level = zap.NewAtomicLevelAt(level.zapLevel())
	return cfg.Build()
}
