// Package logging provides a structured logging implementation for the application
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// LogLevel represents different levels of logging
type LogLevel int

const (
	// LevelDebug is for detailed debugging information
	LevelDebug LogLevel = iota
	// LevelInfo is for general operational information
	LevelInfo
	// LevelWarn is for warning events that might need attention
	LevelWarn
	// LevelError is for error events that might still allow the application to continue running
	LevelError
	// LevelFatal is for severe error events that will lead the application to abort
	LevelFatal
)

var levelNames = map[LogLevel]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelFatal: "FATAL",
}

// String returns the upper-case level name
func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// Logger provides structured logging capabilities.
// Child loggers created with WithName or WithLevel share the parent's
// output, so SetOutput on any of them redirects the whole family.
type Logger struct {
	name   string
	out    *log.Logger
	level  *levelVar
	shared *sync.Mutex
}

type levelVar struct {
	mu    sync.RWMutex
	level LogLevel
}

func (v *levelVar) get() LogLevel {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.level
}

func (v *levelVar) set(level LogLevel) {
	v.mu.Lock()
	v.level = level
	v.mu.Unlock()
}

// New creates a new logger writing to stderr with the given name and minimum log level.
// Stdout is left to the CLI frontend.
func New(name string, minLevel LogLevel) *Logger {
	return NewWithOutput(name, minLevel, os.Stderr)
}

// NewWithOutput creates a new logger writing to w
func NewWithOutput(name string, minLevel LogLevel, w io.Writer) *Logger {
	return &Logger{
		name:   name,
		out:    log.New(w, "", log.LstdFlags),
		level:  &levelVar{level: minLevel},
		shared: &sync.Mutex{},
	}
}

// WithName creates a new logger with a different name but the same configuration
func (l *Logger) WithName(name string) *Logger {
	return &Logger{
		name:   name,
		out:    l.out,
		level:  l.level,
		shared: l.shared,
	}
}

// WithLevel creates a new logger with a different minimum log level.
// Unlike WithName, the returned logger's level is independent of the parent.
func (l *Logger) WithLevel(level LogLevel) *Logger {
	return &Logger{
		name:   l.name,
		out:    l.out,
		level:  &levelVar{level: level},
		shared: l.shared,
	}
}

// Name returns the logger name
func (l *Logger) Name() string {
	return l.name
}

// Level returns the current minimum level
func (l *Logger) Level() LogLevel {
	return l.level.get()
}

// SetOutput sets the output destination for the logger
func (l *Logger) SetOutput(w io.Writer) {
	l.shared.Lock()
	defer l.shared.Unlock()
	l.out.SetOutput(w)
}

// SetMinLevel sets the minimum log level
func (l *Logger) SetMinLevel(level LogLevel) {
	l.level.set(level)
}

// Debug logs a message at debug level using printf-style formatting
func (l *Logger) Debug(format string, v ...interface{}) {
	l.log(LevelDebug, format, v...)
}

// DebugKV logs a message at debug level with key-value pairs
func (l *Logger) DebugKV(msg string, keyValues ...interface{}) {
	l.logKV(LevelDebug, msg, keyValues...)
}

// Info logs a message at info level using printf-style formatting
func (l *Logger) Info(format string, v ...interface{}) {
	l.log(LevelInfo, format, v...)
}

// InfoKV logs a message at info level with key-value pairs
func (l *Logger) InfoKV(msg string, keyValues ...interface{}) {
	l.logKV(LevelInfo, msg, keyValues...)
}

// Warn logs a message at warning level using printf-style formatting
func (l *Logger) Warn(format string, v ...interface{}) {
	l.log(LevelWarn, format, v...)
}

// WarnKV logs a message at warning level with key-value pairs
func (l *Logger) WarnKV(msg string, keyValues ...interface{}) {
	l.logKV(LevelWarn, msg, keyValues...)
}

// Error logs a message at error level using printf-style formatting
func (l *Logger) Error(format string, v ...interface{}) {
	l.log(LevelError, format, v...)
}

// ErrorKV logs a message at error level with key-value pairs
func (l *Logger) ErrorKV(msg string, keyValues ...interface{}) {
	l.logKV(LevelError, msg, keyValues...)
}

// Fatal logs a message at fatal level and then exits
func (l *Logger) Fatal(format string, v ...interface{}) {
	l.log(LevelFatal, format, v...)
	os.Exit(1)
}

// FatalKV logs a message at fatal level with key-value pairs and then exits
func (l *Logger) FatalKV(msg string, keyValues ...interface{}) {
	l.logKV(LevelFatal, msg, keyValues...)
	os.Exit(1)
}

// Printf is a compatibility method for the standard logger interface
func (l *Logger) Printf(format string, v ...interface{}) {
	l.Info(format, v...)
}

func (l *Logger) log(level LogLevel, format string, v ...interface{}) {
	if level < l.level.get() {
		return
	}

	msg := fmt.Sprintf(format, v...)

	l.shared.Lock()
	defer l.shared.Unlock()
	l.out.Printf("[%s] %s: %s", level, l.name, msg)
}

func (l *Logger) logKV(level LogLevel, msg string, keyValues ...interface{}) {
	if level < l.level.get() {
		return
	}

	if len(keyValues)%2 != 0 {
		keyValues = append(keyValues, "<missing value>")
	}

	var sb strings.Builder
	sb.WriteString(msg)
	for i := 0; i < len(keyValues); i += 2 {
		key, ok := keyValues[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keyValues[i])
		}
		fmt.Fprintf(&sb, " %s=%v", key, keyValues[i+1])
	}

	l.shared.Lock()
	defer l.shared.Unlock()
	l.out.Printf("[%s] %s: %s", level, l.name, sb.String())
}

// ParseLevel converts a string level to a LogLevel
func ParseLevel(level string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	case "FATAL":
		return LevelFatal
	default:
		return LevelInfo
	}
}

// StdLogger returns a standard log.Logger instance that uses this logger's output
func (l *Logger) StdLogger() *log.Logger {
	return log.New(l.out.Writer(), l.name+": ", log.LstdFlags)
}

// TruncateForLog shortens s to at most max runes, marking the cut
func TruncateForLog(s string, max int) string {
	runes := []rune(s)
	if max <= 0 || len(runes) <= max {
		return s
	}
	return string(runes[:max]) + fmt.Sprintf("...(%d more)", len(runes)-max)
}
