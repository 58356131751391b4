// Package logging provides a thin structured-logging wrapper used
// throughout the ceremony engine and its surrounding CLI.
package logging

import (
	"fmt"
	"log"
	"log/slog"
	"os"
)

// Logger wraps slog with the handful of convenience methods the rest of
// the module calls.
type Logger struct {
	logger *slog.Logger
	debug  bool
}

// NewLogger creates a logger writing to stderr. debug=true lowers the
// level to include Debug-level records.
func NewLogger(debug bool) *Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return &Logger{logger: slog.New(handler), debug: debug}
}

// DefaultLogger returns a logger at info level.
func DefaultLogger() *Logger {
	return NewLogger(false)
}

// Info logs an informational message with structured key/value args.
func (l *Logger) Info(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

// Infof logs a formatted informational message.
func (l *Logger) Infof(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

// Debug logs a debug message, suppressed unless the logger was created
// with debug=true.
func (l *Logger) Debug(msg string, args ...any) {
	if l.debug {
		l.logger.Debug(msg, args...)
	}
}

// Debugf logs a formatted debug message.
func (l *Logger) Debugf(format string, args ...any) {
	if l.debug {
		l.logger.Debug(fmt.Sprintf(format, args...))
	}
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, args...)
}

// Warnf logs a formatted warning message.
func (l *Logger) Warnf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

// Error logs an error.
func (l *Logger) Error(err error, args ...any) {
	l.logger.Error(err.Error(), args...)
}

// Errorf logs a formatted error message.
func (l *Logger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

// MaybeError logs err if it's not nil. Convenient for end-of-function
// non-fatal error reporting, e.g. journal/audit write failures the
// ceremony is specified to swallow.
func (l *Logger) MaybeError(err error, args ...any) {
	if err != nil {
		l.logger.Error(err.Error(), args...)
	}
}

// Fatalf logs a formatted message and exits. Reserved for cmd/ entrypoint
// startup failures, never called from the engine itself.
func (l *Logger) Fatalf(format string, args ...any) {
	log.Fatalf(format, args...)
}
