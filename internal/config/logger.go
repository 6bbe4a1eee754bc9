package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger creates a structured JSON logger writing to stderr and, when a
// log directory is configured, to a size-rotated <name>.log inside it.
// The returned closer flushes and closes the log file.
func NewLogger(cfg *Config, name string) (*slog.Logger, io.Closer, error) {
	return newLogger(cfg, name, os.Stderr)
}

func newLogger(cfg *Config, name string, console io.Writer) (*slog.Logger, io.Closer, error) {
	var (
		out              = console
		closer io.Closer = nopCloser{}
	)

	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		file := &lumberjack.Logger{
			Filename:   filepath.Join(cfg.LogDir, name+".log"),
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			MaxAge:     cfg.LogMaxAgeDays,
		}
		out = io.MultiWriter(console, file)
		closer = file
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	return slog.New(handler), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
