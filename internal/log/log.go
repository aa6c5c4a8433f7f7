// Package log provides structured logging for peoplecam.
// It wraps zap with sensible defaults for production use.
package log

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger *zap.Logger
	sugar  *zap.SugaredLogger
	mu     sync.Mutex
	once   sync.Once
)

// Init initializes the global logger with the specified level and format.
// Valid levels: "debug", "info", "warn", "error".
// Format "json" selects the JSON encoder; anything else is console output.
func Init(level, format string) {
	once.Do(func() {
		set(build(level, format))
	})
}

func build(level, format string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	// Use JSON in production, console in development
	var cfg zap.Config
	if format == "json" || os.Getenv("GO_ENV") == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = lvl > zapcore.DebugLevel

	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func set(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
	sugar = l.Sugar()
	zap.ReplaceGlobals(l)
}

// L returns the global logger instance.
func L() *zap.Logger {
	mu.Lock()
	l := logger
	mu.Unlock()
	if l == nil {
		Init("info", "")
		mu.Lock()
		l = logger
		mu.Unlock()
	}
	return l
}

func s() *zap.SugaredLogger {
	L()
	mu.Lock()
	defer mu.Unlock()
	return sugar
}

// Named returns a child logger for a component.
func Named(name string) *zap.Logger {
	return L().Named(name)
}

// Debug logs at debug level.
func Debug(msg string, keysAndValues ...any) {
	s().Debugw(msg, keysAndValues...)
}

// Info logs at info level.
func Info(msg string, keysAndValues ...any) {
	s().Infow(msg, keysAndValues...)
}

// Warn logs at warn level.
func Warn(msg string, keysAndValues ...any) {
	s().Warnw(msg, keysAndValues...)
}

// Error logs at error level.
func Error(msg string, keysAndValues ...any) {
	s().Errorw(msg, keysAndValues...)
}

// Sync flushes buffered log entries.
func Sync() {
	_ = L().Sync()
}
