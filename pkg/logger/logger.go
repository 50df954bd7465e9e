package logger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Config describes how the application logger should behave.
type Config struct {
	Level   string
	Format  string
	Outputs []string
	Audit   AuditConfig
}

// AuditConfig controls the append-only audit trail used for executed actions.
type AuditConfig struct {
	Enabled    bool
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var (
	mu        sync.Mutex
	appLogger *slog.Logger
	audLogger *slog.Logger
	closers   []io.Closer
)

// Init configures the global logger instances. Calling it again replaces the
// previous configuration.
func Init(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	handler, err := newHandler(cfg.Format, cfg.Outputs, opts)
	if err != nil {
		return err
	}
	appLogger = slog.New(handler)

	audLogger = appLogger
	if cfg.Audit.Enabled {
		if strings.TrimSpace(cfg.Audit.Path) == "" {
			return errors.New("audit log path cannot be empty when enabled")
		}
		writer, err := newRotatingWriter(cfg.Audit.Path, cfg.Audit.MaxSizeMB, cfg.Audit.MaxBackups, cfg.Audit.MaxAgeDays)
		if err != nil {
			return err
		}
		closers = append(closers, writer)
		audLogger = slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return nil
}

func newHandler(format string, outputs []string, opts *slog.HandlerOptions) (slog.Handler, error) {
	writers := make([]io.Writer, 0, len(outputs))
	for _, out := range outputs {
		writer, closer, err := openOutput(out)
		if err != nil {
			return nil, err
		}
		if closer != nil {
			closers = append(closers, closer)
		}
		writers = append(writers, writer)
	}
	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	var writer io.Writer = writers[0]
	if len(writers) > 1 {
		writer = io.MultiWriter(writers...)
	}
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(writer, opts), nil
	}
	return slog.NewTextHandler(writer, opts), nil
}

func openOutput(path string) (io.Writer, io.Closer, error) {
	switch strings.ToLower(path) {
	case "", "stdout":
		return os.Stdout, nil, nil
	case "stderr":
		return os.Stderr, nil, nil
	default:
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file %s: %w", path, err)
		}
		return file, file, nil
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// L returns the structured application logger.
func L() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if appLogger == nil {
		appLogger = slog.New(slog.NewTextHandler(os.Stdout, nil))
	}
	return appLogger
}

// Audit returns the audit logger. It falls back to the application logger
// when no dedicated audit output is configured.
func Audit() *slog.Logger {
	mu.Lock()
	audit := audLogger
	mu.Unlock()
	if audit == nil {
		return L()
	}
	return audit
}

// Named returns a child logger grouped under the component name.
func Named(name string) *slog.Logger {
	return L().WithGroup(name)
}

// Sync closes any file-backed outputs opened by Init.
func Sync() error {
	mu.Lock()
	defer mu.Unlock()
	var err error
	for _, closer := range closers {
		err = errors.Join(err, closer.Close())
	}
	closers = nil
	return err
}
