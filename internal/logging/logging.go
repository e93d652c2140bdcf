package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	// LevelDebug is the debug log level
	LevelDebug LogLevel = iota
	// LevelInfo is the info log level
	LevelInfo
	// LevelWarn is the warning log level
	LevelWarn
	// LevelError is the error log level
	LevelError
)

var (
	currentLevel atomic.Int32
	levelOnce    sync.Once
	atomicLevel  = zap.NewAtomicLevel()

	loggerMu sync.RWMutex
	base     *zap.Logger
	sugar    *zap.SugaredLogger
)

// initLevel initializes the log level from environment variables
func initLevel() {
	levelOnce.Do(func() {
		level := levelFromEnv()
		currentLevel.Store(int32(level))
		atomicLevel.SetLevel(level.zapLevel())
	})
}

func levelFromEnv() LogLevel {
	// Check DEBUG environment variable first
	if debug := os.Getenv("DEBUG"); debug != "" {
		switch strings.ToLower(debug) {
		case "1", "true", "yes", "on":
			return LevelDebug
		}
	}

	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// GetLevel returns the current log level
func GetLevel() LogLevel {
	initLevel()
	return LogLevel(currentLevel.Load())
}

// IsDebugEnabled returns true if debug logging is enabled
func IsDebugEnabled() bool {
	return GetLevel() <= LevelDebug
}

// zapLevel maps a LogLevel onto the zap equivalent.
func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func newLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = atomicLevel
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.DisableStacktrace = true
	cfg.Sampling = nil

	logger, err := cfg.Build()
	if err != nil {
		// The production config only fails on broken sinks; stderr always exists.
		return zap.NewNop()
	}
	return logger
}

// L returns the process-wide structured logger.
func L() *zap.Logger {
	loggerMu.RLock()
	l := base
	loggerMu.RUnlock()
	if l != nil {
		return l
	}

	loggerMu.Lock()
	defer loggerMu.Unlock()
	if base == nil {
		initLevel()
		base = newLogger()
		sugar = base.Sugar()
	}
	return base
}

func s() *zap.SugaredLogger {
	L()
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return sugar
}

// SetLogger replaces the process-wide logger. Tests use it to capture output.
func SetLogger(l *zap.Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	base = l
	sugar = l.Sugar()
}

// SetLevel overrides the level read from the environment.
func SetLevel(level LogLevel) {
	initLevel()
	currentLevel.Store(int32(level))
	atomicLevel.SetLevel(level.zapLevel())
}

// Sync flushes any buffered log entries.
func Sync() error {
	return L().Sync()
}

// Debug logs a debug message (only if DEBUG=true or LOG_LEVEL=debug)
func Debug(format string, args ...interface{}) {
	if GetLevel() <= LevelDebug {
		s().Debugf(format, args...)
	}
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	if GetLevel() <= LevelInfo {
		s().Infof(format, args...)
	}
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	if GetLevel() <= LevelWarn {
		s().Warnf(format, args...)
	}
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	if GetLevel() <= LevelError {
		s().Errorf(format, args...)
	}
}

// Fatal logs an error message and exits
func Fatal(format string, args ...interface{}) {
	s().Fatalf(format, args...)
}

// Printf logs a message that should always print regardless of level
func Printf(format string, args ...interface{}) {
	s().Infof(format, args...)
}

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", l)
	}
}
