package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Format is the output format for log records.
type Format string

const (
	// FormatJSON outputs logs in JSON format.
	FormatJSON Format = "json"
	// FormatText outputs logs in plain text format.
	FormatText Format = "text"
)

// Config contains configuration for the Logger.
type Config struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	Level string

	// Format is the output format ("json", "text").
	Format string

	// AddSource includes file and line number in logs.
	AddSource bool

	// Writer is the output writer (defaults to os.Stdout).
	Writer io.Writer
}

// Logger is the explicitly constructed root logger for the process.
//
// There is no package-level singleton: the daemon constructs one Logger,
// hands its Slog handle to every component, and calls Shutdown on
// teardown. Secret values are redacted before any record is written.
type Logger struct {
	slog     *slog.Logger
	redactor *Redactor
	writer   io.Writer
}

// New creates a new Logger with the given configuration.
func New(cfg Config) (*Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	format, err := parseFormat(cfg.Format)
	if err != nil {
		return nil, fmt.Errorf("invalid log format: %w", err)
	}

	writer := cfg.Writer
	if writer == nil {
		writer = os.Stdout
	}

	redactor := NewRedactor()

	opts := &slog.HandlerOptions{
		Level:       level,
		AddSource:   cfg.AddSource,
		ReplaceAttr: redactor.ReplaceAttr,
	}

	var handler slog.Handler
	switch format {
	case FormatText:
		handler = slog.NewTextHandler(writer, opts)
	default:
		handler = slog.NewJSONHandler(writer, opts)
	}

	return &Logger{
		slog:     slog.New(handler),
		redactor: redactor,
		writer:   writer,
	}, nil
}

// Slog returns the underlying *slog.Logger for handing to components.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// With returns a component logger with the given fields attached.
func (l *Logger) With(args ...any) *slog.Logger {
	return l.slog.With(args...)
}

// Shutdown flushes any pending output. It is safe to call on any exit
// path, including after a failed startup.
func (l *Logger) Shutdown() error {
	// Sync fails with EINVAL on pipes and terminals; that is not a problem
	// worth surfacing during teardown.
	if f, ok := l.writer.(*os.File); ok {
		_ = f.Sync()
	}
	return nil
}

// parseLevel parses a log level string into slog.Level.
func parseLevel(levelStr string) (slog.Level, error) {
	switch levelStr {
	case "debug", "DEBUG":
		return slog.LevelDebug, nil
	case "info", "INFO", "":
		return slog.LevelInfo, nil
	case "warn", "WARN", "warning", "WARNING":
		return slog.LevelWarn, nil
	case "error", "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", levelStr)
	}
}

// parseFormat parses a log format string into Format.
func parseFormat(formatStr string) (Format, error) {
	switch formatStr {
	case "json", "JSON", "":
		return FormatJSON, nil
	case "text", "TEXT":
		return FormatText, nil
	default:
		return FormatJSON, fmt.Errorf("unknown log format: %s", formatStr)
	}
}
