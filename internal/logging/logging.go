package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Level controls which log messages are emitted
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Fields holds structured key/value pairs attached to a log message
type Fields map[string]interface{}

// WithField attaches a single key/value pair to a log message
func WithField(key string, value interface{}) Fields {
	return Fields{key: value}
}

// WithFields attaches multiple key/value pairs to a log message
func WithFields(fields map[string]interface{}) Fields {
	return Fields(fields)
}

// Logger is a leveled structured logger
type Logger struct {
	log *logrus.Logger
}

// New creates a logger writing to stderr at the given level
func New(level Level) *Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	switch level {
	case LevelDebug:
		l.SetLevel(logrus.DebugLevel)
	case LevelWarn:
		l.SetLevel(logrus.WarnLevel)
	case LevelError:
		l.SetLevel(logrus.ErrorLevel)
	default:
		l.SetLevel(logrus.InfoLevel)
	}

	return &Logger{log: l}
}

func (l *Logger) Debug(msg string, fields ...Fields) {
	l.entry(fields).Debug(msg)
}

func (l *Logger) Info(msg string, fields ...Fields) {
	l.entry(fields).Info(msg)
}

func (l *Logger) Warn(msg string, fields ...Fields) {
	l.entry(fields).Warn(msg)
}

func (l *Logger) Error(msg string, fields ...Fields) {
	l.entry(fields).Error(msg)
}

func (l *Logger) entry(fields []Fields) *logrus.Entry {
	merged := logrus.Fields{}
	for _, f := range fields {
		for k, v := range f {
			merged[k] = v
		}
	}
	return l.log.WithFields(merged)
}
