package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"floodmap/pkg/config"
)

// Init initializes the default slog logger based on configuration.
// It returns a cleanup function to close the log file, if any.
func Init(cfg *config.LogConfig) (func(), error) {
	level := parseLevel(cfg.Level)

	if cfg.Path == "" {
		handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
		slog.SetDefault(slog.New(handler))
		return func() {}, nil
	}

	rotate(cfg.Path)
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}
	fileHandler := slog.NewTextHandler(file, opts)
	consoleHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: maxLevel(level, slog.LevelInfo), // console stays at INFO and up
	})
	slog.SetDefault(slog.New(&multiHandler{handlers: []slog.Handler{fileHandler, consoleHandler}}))

	return func() { file.Close() }, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func maxLevel(a, b slog.Level) slog.Level {
	if a > b {
		return a
	}
	return b
}

// multiHandler fans a record out to the file and console handlers, each
// applying its own level filter.
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range m.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return m.fanout(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	return m.fanout(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (m *multiHandler) fanout(wrap func(slog.Handler) slog.Handler) slog.Handler {
	out := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		out[i] = wrap(h)
	}
	return &multiHandler{handlers: out}
}

// rotate renames an existing log file to .old so each run starts fresh
// but the previous run's log is kept.
func rotate(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	oldPath := path + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(path, oldPath)
}
