// Package logging wraps logrus behind a narrow Logger interface so that
// every engine component depends on an interface, not a concrete logging
// library, while the CLI and server entry points still get logrus's
// structured fields and formatters for free.
package logging

import (
	"github.com/sirupsen/logrus"
)

// Level mirrors logrus levels the engine cares about.
type Level uint32

const (
	Error Level = iota
	Warn
	Info
	Debug
)

func (l Level) logrusLevel() logrus.Level {
	switch l {
	case Error:
		return logrus.ErrorLevel
	case Warn:
		return logrus.WarnLevel
	case Debug:
		return logrus.DebugLevel
	default:
		return logrus.InfoLevel
	}
}

// Logger is the interface every component accepts instead of a concrete
// logrus.Logger. WithComponent returns a child logger tagged with a
// component name.
type Logger interface {
	Debug(fields map[string]interface{}, format string, a ...interface{})
	Info(fields map[string]interface{}, format string, a ...interface{})
	Warn(fields map[string]interface{}, format string, a ...interface{})
	Error(fields map[string]interface{}, format string, a ...interface{})
	WithComponent(name string) Logger
}

// StandardLogger is the default Logger implementation, backed by logrus.
type StandardLogger struct {
	entry *logrus.Entry
}

// New returns a StandardLogger configured with the pretty formatter, the
// engine's default for interactive (CLI) use.
func New() *StandardLogger {
	l := logrus.New()
	l.SetFormatter(&prettyFormatter{})
	return &StandardLogger{entry: logrus.NewEntry(l)}
}

// NewJSON returns a StandardLogger configured for structured JSON output,
// the engine's default for server/production use.
func NewJSON() *StandardLogger {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{})
	return &StandardLogger{entry: logrus.NewEntry(l)}
}

// SetLevel adjusts the underlying logrus level.
func (s *StandardLogger) SetLevel(lv Level) {
	s.entry.Logger.SetLevel(lv.logrusLevel())
}

func (s *StandardLogger) log(lv logrus.Level, fields map[string]interface{}, format string, a ...interface{}) {
	e := s.entry
	if len(fields) > 0 {
		e = e.WithFields(fields)
	}
	e.Logf(lv, format, a...)
}

func (s *StandardLogger) Debug(fields map[string]interface{}, format string, a ...interface{}) {
	s.log(logrus.DebugLevel, fields, format, a...)
}
func (s *StandardLogger) Info(fields map[string]interface{}, format string, a ...interface{}) {
	s.log(logrus.InfoLevel, fields, format, a...)
}
func (s *StandardLogger) Warn(fields map[string]interface{}, format string, a ...interface{}) {
	s.log(logrus.WarnLevel, fields, format, a...)
}
func (s *StandardLogger) Error(fields map[string]interface{}, format string, a ...interface{}) {
	s.log(logrus.ErrorLevel, fields, format, a...)
}

// WithComponent returns a child logger tagged with a "component" field,
// mirroring how the catalog/router/migrator tag their own log lines.
func (s *StandardLogger) WithComponent(name string) Logger {
	return &StandardLogger{entry: s.entry.WithField("component", name)}
}

// NoOp is a Logger that discards everything; used in tests.
type NoOp struct{}

func (NoOp) Debug(map[string]interface{}, string, ...interface{}) {}
func (NoOp) Info(map[string]interface{}, string, ...interface{})  {}
func (NoOp) Warn(map[string]interface{}, string, ...interface{})  {}
func (NoOp) Error(map[string]interface{}, string, ...interface{}) {}
func (NoOp) WithComponent(string) Logger                          { return NoOp{} }

var std = New()

// Get returns the package-level standard logger. Components should prefer
// an injected Logger; Get exists for the CLI entry point's convenience.
func Get() *StandardLogger { return std }
