// Package log wraps log/slog with the process-wide logger used by the ledger.
package log

import (
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

// logger is swapped by SetSessionID while other goroutines log.
var logger atomic.Pointer[slog.Logger]

// base is the handler without the session tag.
var base atomic.Pointer[slog.Handler]

// Options configures the logger.
type Options struct {
	// Verbose enables debug and info output; otherwise only warnings and errors are written.
	Verbose bool
	// JSONFormat uses JSON output instead of text.
	JSONFormat bool
	// Output is the destination writer (defaults to os.Stderr).
	Output io.Writer
}

// Init replaces the process logger with one built from opts.
func Init(opts Options) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if opts.JSONFormat {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}

	install(handler)
}

func install(handler slog.Handler) {
	base.Store(&handler)
	l := slog.New(handler)
	logger.Store(l)
	slog.SetDefault(l)
}

// Debug logs a debug message.
func Debug(msg string, args ...any) {
	logger.Load().Debug(msg, args...)
}

// Info logs an info message.
func Info(msg string, args ...any) {
	logger.Load().Info(msg, args...)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	logger.Load().Warn(msg, args...)
}

// Error logs an error message.
func Error(msg string, args ...any) {
	logger.Load().Error(msg, args...)
}

// SetOutput sends all levels to w in text form (for testing).
func SetOutput(w io.Writer) {
	install(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// SetSessionID tags all subsequent log messages with session_id, replacing
// any previous session tag.
func SetSessionID(sessionID string) {
	h := *base.Load()
	logger.Store(slog.New(h.WithAttrs([]slog.Attr{
		slog.String("session_id", sessionID),
	})))
}

func init() {
	// Default logger until Init is called
	l := slog.Default()
	h := l.Handler()
	base.Store(&h)
	logger.Store(l)
}
