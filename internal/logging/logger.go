// Package logging provides structured logging for pelikan-go, built on
// logrus the way the retrieved sockstats/conniver sibling repos do.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger wraps a logrus.Logger with the Default()/SetDefault() accessor
// pattern the teacher's stdlib-backed logger used.
type Logger struct {
	entry *logrus.Logger
}

var (
	defaultLogger *Logger
	mu            sync.RWMutex
)

// Config holds logging configuration.
type Config struct {
	Level  logrus.Level
	Output io.Writer
	JSON   bool
}

// DefaultConfig returns a sensible default configuration: info level,
// text formatter, stderr.
func DefaultConfig() *Config {
	return &Config{
		Level:  logrus.InfoLevel,
		Output: os.Stderr,
	}
}

// NewLogger creates a new logger from config.
func NewLogger(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	output := config.Output
	if output == nil {
		output = os.Stderr
	}
	l := logrus.New()
	l.SetOutput(output)
	l.SetLevel(config.Level)
	if config.JSON {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return &Logger{entry: l}
}

// Default returns the process-wide default logger, creating it lazily.
func Default() *Logger {
	mu.RLock()
	if defaultLogger != nil {
		defer mu.RUnlock()
		return defaultLogger
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewLogger(nil)
	}
	return defaultLogger
}

// SetDefault installs logger as the process-wide default.
func SetDefault(logger *Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = logger
}

// WithField returns a derived entry scoped to a single component, e.g.
// logging.Default().WithField("component", "worker").
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.entry.WithField(key, value)
}

// WithFields returns a derived entry scoped to several fields at once.
func (l *Logger) WithFields(fields logrus.Fields) *logrus.Entry {
	return l.entry.WithFields(fields)
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.entry.WithFields(pairs(args)).Debug(msg) }
func (l *Logger) Info(msg string, args ...interface{})  { l.entry.WithFields(pairs(args)).Info(msg) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.entry.WithFields(pairs(args)).Warn(msg) }
func (l *Logger) Error(msg string, args ...interface{}) { l.entry.WithFields(pairs(args)).Error(msg) }

// Debugf/Infof/Warnf/Errorf retained for call sites migrated verbatim
// from the teacher's printf-style logger.
func (l *Logger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

// Printf satisfies the teacher-style Logger interface used by lower
// layers that only know about Printf/Debugf.
func (l *Logger) Printf(format string, args ...interface{}) { l.entry.Infof(format, args...) }

// SetLevel adjusts the logger's minimum emitted level at runtime.
func (l *Logger) SetLevel(level logrus.Level) { l.entry.SetLevel(level) }

// pairs converts a flat key,value,... slice (as used by the teacher's
// Debug("msg", "k", v) call sites) into logrus.Fields.
func pairs(args []interface{}) logrus.Fields {
	if len(args) == 0 {
		return logrus.Fields{}
	}
	f := make(logrus.Fields, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		if key, ok := args[i].(string); ok {
			f[key] = args[i+1]
		}
	}
	return f
}

// Package-level convenience functions mirroring the teacher's globals.
func Debug(msg string, args ...interface{}) { Default().Debug(msg, args...) }
func Info(msg string, args ...interface{})  { Default().Info(msg, args...) }
func Warn(msg string, args ...interface{})  { Default().Warn(msg, args...) }
func Error(msg string, args ...interface{}) { Default().Error(msg, args...) }
