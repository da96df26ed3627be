package toolsutil

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Package-level logger shared by the tool packages. Defaults to discarding
// everything below error so library users are not spammed.
var logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
	Level: slog.LevelError,
}))

// SetLogger installs a custom logger for all tool packages.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// GetLogger returns the package logger.
func GetLogger() *slog.Logger {
	return logger
}

// Sentinel errors shared across the tool packages.
var (
	ErrUnsafePath       = errors.New("unsafe path")
	ErrFileTooLarge     = errors.New("file too large")
	ErrNotTextFile      = errors.New("not a text file")
	ErrContentNotFound  = errors.New("content not found")
	ErrCommandDangerous = errors.New("command not allowed")
	ErrInvalidParams    = errors.New("invalid parameters")
)

// ToolError carries structured context about a failed tool invocation.
type ToolError struct {
	Type    string         `json:"type"`
	Message string         `json:"message"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *ToolError) Unwrap() error {
	return e.Cause
}

// NewToolError creates a tool error with an empty details map.
func NewToolError(errorType, message, code string, cause error) *ToolError {
	return &ToolError{
		Type:    errorType,
		Message: message,
		Code:    code,
		Cause:   cause,
		Details: make(map[string]any),
	}
}

var languageByExt = map[string]string{
	".go":         "go",
	".js":         "javascript",
	".jsx":        "javascript",
	".ts":         "typescript",
	".tsx":        "typescript",
	".py":         "python",
	".rb":         "ruby",
	".java":       "java",
	".c":          "c",
	".h":          "c",
	".hpp":        "c",
	".cpp":        "cpp",
	".cc":         "cpp",
	".cxx":        "cpp",
	".rs":         "rust",
	".php":        "php",
	".sh":         "bash",
	".bash":       "bash",
	".ps1":        "powershell",
	".sql":        "sql",
	".yaml":       "yaml",
	".yml":        "yaml",
	".json":       "json",
	".toml":       "toml",
	".xml":        "xml",
	".html":       "html",
	".htm":        "html",
	".css":        "css",
	".scss":       "scss",
	".sass":       "scss",
	".md":         "markdown",
	".tex":        "latex",
	".dockerfile": "dockerfile",
	".makefile":   "makefile",
}

var languageByFilename = map[string]string{
	"dockerfile":        "dockerfile",
	"makefile":          "makefile",
	"rakefile":          "ruby",
	"gemfile":           "ruby",
	"gemfile.lock":      "ruby",
	"package.json":      "json",
	"package-lock.json": "json",
	"cargo.toml":        "toml",
	"cargo.lock":        "toml",
	"go.mod":            "go",
	"go.sum":            "go",
}

// DetectLanguage guesses a file's language from its extension, falling back
// to the filename and then the leading content.
func DetectLanguage(filePath string, content []byte) string {
	ext := strings.ToLower(filepath.Ext(filePath))
	if lang, ok := languageByExt[ext]; ok {
		return lang
	}

	name := strings.ToLower(filepath.Base(filePath))
	if lang, ok := languageByFilename[name]; ok {
		return lang
	}

	if len(content) > 0 {
		head := strings.ToLower(string(content[:min(len(content), 1024)]))

		switch {
		case strings.HasPrefix(head, "#!/bin/bash"), strings.HasPrefix(head, "#!/bin/sh"):
			return "bash"
		case strings.HasPrefix(head, "#!/usr/bin/env python"):
			return "python"
		case strings.HasPrefix(head, "#!/usr/bin/env node"):
			return "javascript"
		}

		switch {
		case strings.Contains(head, "package main") && strings.Contains(head, "func "):
			return "go"
		case strings.Contains(head, "def ") && (strings.Contains(head, "import ") || strings.Contains(head, "from ")):
			return "python"
		case strings.Contains(head, "function ") || strings.Contains(head, "const ") || strings.Contains(head, "let "):
			return "javascript"
		}
	}

	return "text"
}

// System directories the file tools refuse to touch.
var restrictedPrefixes = []string{
	"/etc", "/bin", "/sbin", "/usr/bin", "/usr/sbin",
	"/boot", "/sys", "/proc", "/dev", "/root",
	"/var/log", "/var/lib", "/var/run",
	"/lib", "/lib64", "/usr/lib", "/usr/lib64",
}

// IsPathSafe reports whether a path may be used for file operations. System
// directories, traversal sequences, and null bytes are rejected.
func IsPathSafe(path string) bool {
	cleanPath := filepath.Clean(path)

	for _, prefix := range restrictedPrefixes {
		if cleanPath == prefix || strings.HasPrefix(cleanPath, prefix+"/") {
			return false
		}
	}

	if strings.Contains(cleanPath, "../") || strings.Contains(cleanPath, "..\\") {
		return false
	}

	if strings.Contains(cleanPath, "\x00") {
		return false
	}

	return true
}

// MaxFileSize is the largest file the file tools will read or write.
const MaxFileSize = 100 * 1024 * 1024

// ValidateFileSize rejects sizes above MaxFileSize.
func ValidateFileSize(size int64) error {
	if size > MaxFileSize {
		return fmt.Errorf("%w: file size %s exceeds maximum %s", ErrFileTooLarge, FormatBytes(size), FormatBytes(MaxFileSize))
	}
	return nil
}

// IsTextFile reports whether content looks like text: no null bytes in the
// leading 8KB, valid UTF-8, and mostly printable characters.
func IsTextFile(content []byte) bool {
	if len(content) == 0 {
		return true
	}

	sample := content[:min(len(content), 8192)]
	for _, b := range sample {
		if b == 0 {
			return false
		}
	}

	if !utf8.Valid(content) {
		return false
	}

	printable := 0
	for _, b := range sample {
		if b >= 32 && b <= 126 || b == '\t' || b == '\n' || b == '\r' {
			printable++
		}
	}

	return float64(printable)/float64(len(sample)) > 0.70
}

// FormatBytes renders a byte count with a binary unit suffix.
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
