package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lmittmann/tint"

	"github.com/skald-dev/skald/src/config"
)

// newConsoleLogger writes colorized logs to stderr. One-shot commands use it
// because their stdout carries the answer, not the logs.
func newConsoleLogger(logLevel string) *slog.Logger {
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      parseLogLevel(logLevel),
		TimeFormat: time.Kitchen,
	}))
}

// newSessionFileLogger writes JSON logs to a per-session file so log lines
// never tear the interactive transcript. The returned path is empty when
// logging fell back to discard.
func newSessionFileLogger(logLevel string) (*slog.Logger, string) {
	logDir := config.GetDefaultStoragePaths().LogDir
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return discardLogger(), ""
	}

	name := fmt.Sprintf("session_%s.log", time.Now().Format("20060102_150405"))
	path := filepath.Join(logDir, name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return discardLogger(), ""
	}

	logger := slog.New(slog.NewJSONHandler(file, &slog.HandlerOptions{
		Level: parseLogLevel(logLevel),
	}))
	return logger, path
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func parseLogLevel(levelStr string) slog.Level {
	switch levelStr {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
