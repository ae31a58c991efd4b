// Package logging provides structured logging for the pingd collector.
//
// This package wraps the standard library's log/slog package to provide
// consistent logging across all components. It supports both text and JSON
// output formats, configurable log levels, component-based loggers and an
// optional size-rotated log file.
//
// Usage:
//
//	// Initialize at startup
//	logging.Init(logging.Options{Level: "info", Format: "auto"})
//
//	// Get a component logger and hand it to the pipeline
//	log := logging.Component("collector")
//	log.Info("run started", "hosts", 3)
//
// The pipeline packages never log through the package-level functions; they
// receive a *slog.Logger so tests can capture what they emit.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/xtxerr/pingd/config"
)

// Logger is the global logger instance.
var Logger *slog.Logger

// Options configures Init.
type Options struct {
	// Level is one of debug, info, warn, error.
	Level string

	// Format is text, json or auto. Auto selects text when stdout is a
	// terminal and JSON otherwise.
	Format string

	// File, when set, receives the log output instead of stdout and is
	// rotated by size.
	File string

	// MaxSizeMB and MaxBackups control file rotation.
	MaxSizeMB  int
	MaxBackups int
}

// Init initializes the global logger. It returns a close function that
// releases the log file, if one was opened.
func Init(opts Options) (func() error, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	var out io.Writer = os.Stdout
	closer := func() error { return nil }
	isTTY := term.IsTerminal(int(os.Stdout.Fd()))

	if opts.File != "" {
		maxSize := opts.MaxSizeMB
		if maxSize <= 0 {
			maxSize = config.DefaultLogMaxSizeMB
		}
		maxBackups := opts.MaxBackups
		if maxBackups <= 0 {
			maxBackups = config.DefaultLogMaxBackups
		}
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    maxSize,
			MaxBackups: maxBackups,
		}
		out = rotator
		closer = rotator.Close
		isTTY = false
	}

	jsonFormat, err := useJSON(opts.Format, isTTY)
	if err != nil {
		return nil, err
	}

	InitWithHandler(NewHandler(out, level, jsonFormat))
	return closer, nil
}

// NewHandler builds the slog handler used by Init.
func NewHandler(w io.Writer, level slog.Level, jsonFormat bool) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}
	if jsonFormat {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// InitWithHandler initializes the global logger with a custom handler.
// This is useful for testing or custom output destinations.
func InitWithHandler(handler slog.Handler) {
	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

// ParseLevel converts a configured level name into a slog.Level.
// The empty string selects the default level.
func ParseLevel(s string) (slog.Level, error) {
	if s == "" {
		s = config.DefaultLogLevel
	}
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

func useJSON(format string, isTTY bool) (bool, error) {
	if format == "" {
		format = config.DefaultLogFormat
	}
	switch strings.ToLower(format) {
	case "json":
		return true, nil
	case "text":
		return false, nil
	case "auto":
		return !isTTY, nil
	default:
		return false, fmt.Errorf("unknown log format %q", format)
	}
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ensure() {
	if Logger == nil {
		InitWithHandler(NewHandler(os.Stdout, slog.LevelInfo, false))
	}
}

// With returns a new logger with additional attributes.
// These attributes are included in every log entry from the returned logger.
func With(args ...any) *slog.Logger {
	ensure()
	return Logger.With(args...)
}

// Component returns a logger for a specific component.
// The component name is added as an attribute to all log entries.
//
// Example:
//
//	log := logging.Component("writer")
//	log.Info("flushed") // Output: time=... level=INFO component=writer msg=flushed
func Component(name string) *slog.Logger {
	ensure()
	return Logger.With("component", name)
}

// WithContext returns a logger that includes context values.
// Collection runs put their run id into the context.
func WithContext(ctx context.Context) *slog.Logger {
	ensure()

	logger := Logger
	if runID, ok := ctx.Value(contextKeyRunID).(string); ok {
		logger = logger.With("run_id", runID)
	}
	return logger
}

// Context key types for type-safe context value extraction.
type contextKey int

const (
	contextKeyRunID contextKey = iota
)

// ContextWithRunID adds a run ID to the context for logging.
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, contextKeyRunID, runID)
}

// RunIDFromContext returns the run ID stored in ctx, if any.
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyRunID).(string)
	return id
}

// =============================================================================
// Convenience Functions
// =============================================================================

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	ensure()
	Logger.Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	ensure()
	Logger.Info(msg, args...)
}

// Warn logs at warning level.
func Warn(msg string, args ...any) {
	ensure()
	Logger.Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	ensure()
	Logger.Error(msg, args...)
}
