package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel defines the severity of a log message
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// Logger is a thin wrapper around zap's SugaredLogger that exposes
// the key-value logging style used across the service.
type Logger struct {
	*zap.SugaredLogger
}

// New creates a new Logger instance writing console output to stdout.
func New(level LogLevel) *Logger {
	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.Lock(os.Stdout),
		zapLevel(level),
	)

	zl := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(0))
	return &Logger{SugaredLogger: zl.Sugar()}
}

// Named returns a logger annotated with the given component name.
func (l *Logger) Named(name string) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.Named(name)}
}

// FromEnv creates a logger whose level is taken from the LOG_LEVEL
// environment variable ("debug" enables debug output).
func FromEnv() *Logger {
	level := INFO
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = DEBUG
	}
	return New(level)
}

func zapLevel(level LogLevel) zapcore.Level {
	switch level {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
