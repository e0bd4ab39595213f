// Package logging provides a simple leveled logger for the codec tools.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents log severity levels
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

// Format selects how a record is rendered
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// Logger provides leveled logging
type Logger struct {
	level  Level
	format Format
	mu     sync.RWMutex
	logger *log.Logger
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// New returns an info-level text logger writing to w.
func New(w io.Writer) *Logger {
	l := &Logger{level: LevelInfo}
	l.SetOutput(w)
	return l
}

// Default returns the default logger instance
func Default() *Logger {
	once.Do(func() {
		defaultLogger = New(os.Stderr)
	})
	return defaultLogger
}

// SetLevel sets the minimum log level
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetLevelFromString sets the log level from a string
func (l *Logger) SetLevelFromString(levelStr string) {
	switch strings.ToLower(levelStr) {
	case "debug":
		l.SetLevel(LevelDebug)
	case "info":
		l.SetLevel(LevelInfo)
	case "warn", "warning":
		l.SetLevel(LevelWarn)
	case "error":
		l.SetLevel(LevelError)
	default:
		l.SetLevel(LevelInfo)
	}
}

// SetFormat switches between "text" and "json" output. Unknown names fall
// back to text.
func (l *Logger) SetFormat(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.format = FormatText
	if strings.EqualFold(name, "json") {
		l.format = FormatJSON
	}
	l.logger = newStdLogger(l.logger.Writer(), l.format)
}

// SetOutput redirects the logger to w.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger = newStdLogger(w, l.format)
}

func newStdLogger(w io.Writer, format Format) *log.Logger {
	if format == FormatJSON {
		return log.New(w, "", 0)
	}
	return log.New(w, "", log.LstdFlags|log.LUTC)
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

// GetLevelString returns the current log level as a string
func (l *Logger) GetLevelString() string {
	return levelNames[l.GetLevel()]
}

type jsonRecord struct {
	Time  string `json:"time"`
	Level string `json:"level"`
	Msg   string `json:"msg"`
}

func (l *Logger) log(level Level, format string, args ...interface{}) {
	l.mu.RLock()
	currentLevel, outFormat, out := l.level, l.format, l.logger
	l.mu.RUnlock()

	if level < currentLevel {
		return
	}

	msg := fmt.Sprintf(format, args...)
	if outFormat == FormatJSON {
		rec, err := json.Marshal(jsonRecord{
			Time:  time.Now().UTC().Format(time.RFC3339Nano),
			Level: strings.ToLower(levelNames[level]),
			Msg:   msg,
		})
		if err == nil {
			out.Print(string(rec))
			return
		}
	}
	out.Printf("[%s] %s", levelNames[level], msg)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(LevelDebug, format, args...)
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(LevelInfo, format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(LevelWarn, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(LevelError, format, args...)
}

// Elapsed reports how long op has been running since start, in milliseconds.
func (l *Logger) Elapsed(op string, start time.Time) {
	l.log(LevelInfo, "%s took %d ms", op, time.Since(start).Milliseconds())
}

// Package-level convenience functions

// SetLevel sets the default logger's level
func SetLevel(level Level) {
	Default().SetLevel(level)
}

// SetLevelFromString sets the default logger's level from a string
func SetLevelFromString(levelStr string) {
	Default().SetLevelFromString(levelStr)
}

// SetFormat sets the default logger's output format
func SetFormat(name string) {
	Default().SetFormat(name)
}

// SetOutput redirects the default logger
func SetOutput(w io.Writer) {
	Default().SetOutput(w)
}

// GetLevelString returns the default logger's level as a string
func GetLevelString() string {
	return Default().GetLevelString()
}

// Debug logs a debug message to the default logger
func Debug(format string, args ...interface{}) {
	Default().Debug(format, args...)
}

// Info logs an info message to the default logger
func Info(format string, args ...interface{}) {
	Default().Info(format, args...)
}

// Warn logs a warning message to the default logger
func Warn(format string, args ...interface{}) {
	Default().Warn(format, args...)
}

// Error logs an error message to the default logger
func Error(format string, args ...interface{}) {
	Default().Error(format, args...)
}

// Elapsed reports an operation's duration on the default logger
func Elapsed(op string, start time.Time) {
	Default().Elapsed(op, start)
}
