// Package app wires configuration, storage, the canvas engine and the Lua
// front end into editing sessions.
package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dshills/rewind/internal/config"
)

// ParseLogLevel parses a level name. Unknown names mean info.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// NewLogger builds the process logger. Output goes to cfg.File through a
// rotating writer when set, otherwise to stderr. The "auto" format picks
// text for terminals and JSON for everything else.
//
// The returned close function releases the log file.
func NewLogger(cfg config.Logging, stderr io.Writer) (*slog.Logger, func() error, error) {
	w := stderr
	closeFn := func() error { return nil }

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o750); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		rot := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		w = rot
		closeFn = rot.Close
	}

	opts := &slog.HandlerOptions{Level: ParseLogLevel(cfg.Level)}
	var handler slog.Handler
	switch resolveFormat(cfg.Format, w) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler).With(slog.String("app", "rewind")), closeFn, nil
}

func resolveFormat(format string, w io.Writer) string {
	format = strings.ToLower(format)
	if format != "auto" && format != "" {
		return format
	}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return "text"
	}
	return "json"
}
