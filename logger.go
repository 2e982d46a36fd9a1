package kino

import (
	"fmt"
	"maps"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

type Fields map[string]any

type loggerWithFields interface {
	WithFields(Fields) Logger
}

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

var LoggerEnabled = false

type defaultLogger struct {
	fields Fields
}

func (d *defaultLogger) Debug(format string, args ...any) {
	d.log("DEBUG", format, args...)
}

func (d *defaultLogger) Info(format string, args ...any) {
	d.log("INFO", format, args...)
}

func (d *defaultLogger) Error(format string, args ...any) {
	d.log("ERROR", format, args...)
}

func (d *defaultLogger) WithFields(fields Fields) Logger {
	if len(fields) == 0 {
		return d
	}

	merged := make(Fields, len(d.fields)+len(fields))
	maps.Copy(merged, d.fields)
	maps.Copy(merged, fields)

	return &defaultLogger{fields: merged}
}

func (d *defaultLogger) log(level string, format string, args ...any) {
	if !LoggerEnabled {
		return
	}

	message := fmt.Sprintf(format, args...)
	if len(d.fields) == 0 {
		fmt.Printf("[%s] %s\n", level, message)
		return
	}

	fmt.Printf("[%s] %s %s\n", level, message, d.formatFields())
}

func (d *defaultLogger) formatFields() string {
	if len(d.fields) == 0 {
		return ""
	}

	keys := make([]string, 0, len(d.fields))
	for k := range d.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", key, d.fields[key]))
	}

	return fmt.Sprintf("{%s}", strings.Join(parts, ", "))
}

// logrusLogger adapts a logrus entry to Logger.
type logrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger wraps logger so it can be handed to the engine, provider
// and handler.
func NewLogrusLogger(logger *logrus.Logger) Logger {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &logrusLogger{entry: logrus.NewEntry(logger)}
}

func (l *logrusLogger) Debug(format string, args ...any) {
	l.entry.Debugf(format, args...)
}

func (l *logrusLogger) Info(format string, args ...any) {
	l.entry.Infof(format, args...)
}

func (l *logrusLogger) Error(format string, args ...any) {
	l.entry.Errorf(format, args...)
}

func (l *logrusLogger) WithFields(fields Fields) Logger {
	if len(fields) == 0 {
		return l
	}
	return &logrusLogger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

// WithFields attaches fields when logger supports them and returns logger
// unchanged otherwise.
func WithFields(logger Logger, fields Fields) Logger {
	if wf, ok := logger.(loggerWithFields); ok {
		return wf.WithFields(fields)
	}
	return logger
}

// DefaultLogger returns the package logger, silent unless LoggerEnabled is set.
func DefaultLogger() Logger {
	return &defaultLogger{}
}
