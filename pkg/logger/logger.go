// Package logger provides the gateway's process-wide structured logger.
//
// It mirrors the teacher's hand-rolled leveled logger: a thin wrapper
// around the standard library's *log.Logger with component prefixes and
// key=value fields, rather than pulling in a third-party logging
// framework. Design notes (§9) describe the original as a global CLog
// singleton; here that becomes a *Logger value created once at startup and
// threaded explicitly into every subsystem instead of a package-level
// global, with Sync flushing registered shutdown hooks.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// Level represents a log severity.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

// Config holds logger configuration.
type Config struct {
	Level  string
	Format string
	Output io.Writer
}

// Logger is a structured, leveled logger with component scoping.
type Logger struct {
	level  Level
	format string
	logger *log.Logger

	mu       sync.Mutex
	flushers []func() error
}

// Field is a structured logging key/value pair.
type Field struct {
	Key   string
	Value interface{}
}

// New creates a new root Logger.
func New(cfg Config) *Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	return &Logger{
		level:  parseLevel(cfg.Level),
		format: cfg.Format,
		logger: log.New(output, "", log.LstdFlags),
	}
}

// WithComponent returns a child logger tagging every line with component.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		level:  l.level,
		format: l.format,
		logger: log.New(l.logger.Writer(), fmt.Sprintf("[%s] ", component), log.LstdFlags),
	}
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, fields ...Field) {
	if l.level <= DebugLevel {
		l.log("DEBUG", msg, fields...)
	}
}

// Info logs at info level.
func (l *Logger) Info(msg string, fields ...Field) {
	if l.level <= InfoLevel {
		l.log("INFO", msg, fields...)
	}
}

// Warn logs at warn level.
func (l *Logger) Warn(msg string, fields ...Field) {
	if l.level <= WarnLevel {
		l.log("WARN", msg, fields...)
	}
}

// Error logs at error level.
func (l *Logger) Error(msg string, fields ...Field) {
	if l.level <= ErrorLevel {
		l.log("ERROR", msg, fields...)
	}
}

// Fatal logs and terminates the process with exit status 1, the
// config-failure code of spec §6's exit-code table; never called from
// inside a frame handler or protocol goroutine.
func (l *Logger) Fatal(msg string, fields ...Field) {
	l.log("FATAL", msg, fields...)
	os.Exit(1)
}

func (l *Logger) log(level, msg string, fields ...Field) {
	if len(fields) == 0 {
		l.logger.Printf("[%s] %s", level, msg)
		return
	}

	fieldStrs := make([]string, 0, len(fields))
	for _, f := range fields {
		fieldStrs = append(fieldStrs, fmt.Sprintf("%s=%v", f.Key, f.Value))
	}

	l.logger.Printf("[%s] %s %s", level, msg, strings.Join(fieldStrs, " "))
}

// OnShutdown registers a flush/close hook run by Sync.
func (l *Logger) OnShutdown(fn func() error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.flushers = append(l.flushers, fn)
}

// Sync flushes any registered shutdown hooks (e.g. closing a log file).
func (l *Logger) Sync() error {
	l.mu.Lock()
	fns := append([]func() error(nil), l.flushers...)
	l.mu.Unlock()

	var firstErr error
	for _, fn := range fns {
		if err := fn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func parseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "fatal":
		return FatalLevel
	default:
		return InfoLevel
	}
}

// Field constructors

// String creates a string field.
func String(key, val string) Field { return Field{Key: key, Value: val} }

// Int creates an int field.
func Int(key string, val int) Field { return Field{Key: key, Value: val} }

// Int64 creates an int64 field.
func Int64(key string, val int64) Field { return Field{Key: key, Value: val} }

// Uint64 creates a uint64 field.
func Uint64(key string, val uint64) Field { return Field{Key: key, Value: val} }

// Uint creates a uint field.
func Uint(key string, val uint) Field { return Field{Key: key, Value: val} }

// Uint32 creates a uint32 field.
func Uint32(key string, val uint32) Field { return Field{Key: key, Value: val} }

// Bool creates a bool field.
func Bool(key string, val bool) Field { return Field{Key: key, Value: val} }

// Float64 creates a float64 field.
func Float64(key string, val float64) Field { return Field{Key: key, Value: val} }

// Error creates an error field.
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: "nil"}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Any creates a field holding an arbitrary value.
func Any(key string, val interface{}) Field { return Field{Key: key, Value: val} }
