// Package logging provides the leveled, structured logger used across
// cruscan. ERROR and WARN records are routed to stderr, INFO/DEBUG
// progress to stdout; verbosity gates rendering only, never which
// checks run.
package logging

import (
	"fmt"
	"io"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// Level represents a logging severity.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return Debug, nil
	case "info", "":
		return Info, nil
	case "warn", "warning":
		return Warn, nil
	case "error":
		return Error, nil
	default:
		return Level(0), fmt.Errorf("unsupported log level %q", s)
	}
}

// VerbosityLevel maps the CLI's -v/--verbosity 0..4 scale onto a Level.
// 0 is quietest (errors only), 4 is the most chatty (debug).
func VerbosityLevel(v int) Level {
	switch {
	case v <= 0:
		return Error
	case v == 1:
		return Warn
	case v == 2:
		return Info
	default:
		return Debug
	}
}

// Format controls how log entries are rendered.
type Format int

const (
	Text Format = iota
	JSON
)

func (f Format) String() string {
	switch f {
	case Text:
		return "text"
	case JSON:
		return "json"
	default:
		return "unknown"
	}
}

// ParseFormat converts a string to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return JSON, nil
	case "text", "":
		return Text, nil
	default:
		return Format(0), fmt.Errorf("unsupported log format %q", s)
	}
}

// Field represents a structured log field.
type Field struct {
	Key   string
	Value any
}

// Logger defines leveled structured logging operations.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

// Default returns the process-wide logger.
func Default() Logger {
	if defaultLogger == nil {
		defaultLogger = New(Error, Text, io.Discard, io.Discard)
	}
	return defaultLogger
}

// SetDefault replaces the process-wide logger.
func SetDefault(l Logger) {
	if l != nil {
		defaultLogger = l
	}
}

var defaultLogger Logger

// charmLogger backs Logger with github.com/charmbracelet/log. stdout
// carries INFO/DEBUG, stderr carries WARN/ERROR; charmbracelet/log has no
// notion of per-level output streams within one instance, so the two
// halves are separate underlying loggers sharing a level floor and field
// trail.
type charmLogger struct {
	out    *charmlog.Logger
	errOut *charmlog.Logger
	fields []Field
}

// New constructs a Logger at the given level/format, writing INFO/DEBUG to
// out and WARN/ERROR to errOut.
func New(level Level, format Format, out, errOut io.Writer) Logger {
	formatter := charmlog.TextFormatter
	if format == JSON {
		formatter = charmlog.JSONFormatter
	}
	opts := charmlog.Options{
		Level:           toCharmLevel(level),
		Formatter:       formatter,
		ReportTimestamp: format == JSON,
	}
	return &charmLogger{
		out:    charmlog.NewWithOptions(out, opts),
		errOut: charmlog.NewWithOptions(errOut, opts),
	}
}

func toCharmLevel(l Level) charmlog.Level {
	switch l {
	case Debug:
		return charmlog.DebugLevel
	case Warn:
		return charmlog.WarnLevel
	case Error:
		return charmlog.ErrorLevel
	default:
		return charmlog.InfoLevel
	}
}

func (l *charmLogger) With(fields ...Field) Logger {
	combined := make([]Field, 0, len(l.fields)+len(fields))
	combined = append(combined, l.fields...)
	combined = append(combined, fields...)
	return &charmLogger{out: l.out, errOut: l.errOut, fields: combined}
}

func (l *charmLogger) Debug(msg string, fields ...Field) {
	l.out.With(keyvals(l.fields, fields)...).Debug(msg)
}

func (l *charmLogger) Info(msg string, fields ...Field) {
	l.out.With(keyvals(l.fields, fields)...).Info(msg)
}

func (l *charmLogger) Warn(msg string, fields ...Field) {
	l.errOut.With(keyvals(l.fields, fields)...).Warn(msg)
}

func (l *charmLogger) Error(msg string, fields ...Field) {
	l.errOut.With(keyvals(l.fields, fields)...).Error(msg)
}

func keyvals(base, extra []Field) []any {
	out := make([]any, 0, 2*(len(base)+len(extra)))
	for _, f := range base {
		if f.Key == "" {
			continue
		}
		out = append(out, f.Key, f.Value)
	}
	for _, f := range extra {
		if f.Key == "" {
			continue
		}
		out = append(out, f.Key, f.Value)
	}
	return out
}
