package tool_readfile

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/skald-dev/skald/src/agent"
	"github.com/skald-dev/skald/src/skaldagent/toolsutil"
	"github.com/spf13/afero"
)

// Tool name constant
const Name = "read_file"

const readFilePrompt = `Reads a file from the local filesystem.

Usage:
- The path parameter can be absolute or relative to the working directory.
- By default the first 2000 lines are returned; lines longer than 2000 characters are truncated.
- Set line_numbers to true to prefix each line with its line number, which makes follow-up edits easier to anchor.
- This tool can only read files, not directories. Use list_directory for directories.
- Reading an image file returns a short description of the image instead of its bytes.
- You should read a file before editing or overwriting it.`

const (
	maxLines          = 2000
	maxLineLength     = 2000
	maxImageSizeBytes = 10 * 1024 * 1024
)

// ReadFileInput represents the parameters for read_file
type ReadFileInput struct {
	Path        string `json:"path" required:"true" description:"The file path to read"`
	LineNumbers bool   `json:"line_numbers,omitempty" description:"Prefix each line with its line number"`
}

// ReadFileOutput represents the response from read_file
type ReadFileOutput struct {
	Content  string `json:"content" description:"The file content"`
	Path     string `json:"path" description:"The file path that was read"`
	Size     int64  `json:"size" description:"File size in bytes"`
	Language string `json:"language,omitempty" description:"Detected programming language"`
	IsText   bool   `json:"is_text" description:"Whether the file is a text file"`
}

// Tool returns the read_file tool definition using GenericTool
func Tool(fs afero.Fs) (agent.Tool, error) {
	return agent.NewGenericTool(Name, readFilePrompt, makeReadFileHandler(fs))
}

// makeReadFileHandler creates a type-safe handler for the read_file tool
func makeReadFileHandler(fs afero.Fs) func(ctx context.Context, input ReadFileInput) (ReadFileOutput, error) {
	return func(ctx context.Context, input ReadFileInput) (ReadFileOutput, error) {
		select {
		case <-ctx.Done():
			return ReadFileOutput{}, fmt.Errorf("operation cancelled")
		default:
		}

		if !toolsutil.IsPathSafe(input.Path) {
			toolsutil.GetLogger().Error("unsafe path rejected", "path", input.Path)
			return ReadFileOutput{}, fmt.Errorf("unsafe path: %s", input.Path)
		}

		toolsutil.GetLogger().Info("reading file", "path", input.Path, "line_numbers", input.LineNumbers)

		info, err := fs.Stat(input.Path)
		if err != nil {
			toolsutil.GetLogger().Error("file not found", "path", input.Path, "error", err)
			return ReadFileOutput{}, fmt.Errorf("file not found: %s", input.Path)
		}

		if info.IsDir() {
			return ReadFileOutput{}, fmt.Errorf("path is a directory, not a file: %s", input.Path)
		}

		ext := strings.ToLower(filepath.Ext(input.Path))
		if isImageFile(ext) {
			return readImageInfo(fs, input.Path, info.Size(), ext)
		}

		file, err := fs.Open(input.Path)
		if err != nil {
			toolsutil.GetLogger().Error("failed to open file", "path", input.Path, "error", err)
			return ReadFileOutput{}, fmt.Errorf("failed to open file: %v", err)
		}
		defer file.Close()

		content, truncated, err := readWithLimits(file, input.LineNumbers)
		if err != nil {
			toolsutil.GetLogger().Error("failed to read file", "path", input.Path, "error", err)
			return ReadFileOutput{}, fmt.Errorf("failed to read file: %v", err)
		}

		isText := toolsutil.IsTextFile([]byte(content))

		if len(content) == 0 && info.Size() == 0 {
			content = "<system-reminder>This file exists but has empty contents.</system-reminder>"
		}

		language := toolsutil.DetectLanguage(input.Path, []byte(content))

		if truncated {
			content += fmt.Sprintf("\n\n[File truncated at %d lines]", maxLines)
		}

		toolsutil.GetLogger().Info("file read successfully",
			"path", input.Path,
			"size", info.Size(),
			"language", language,
			"truncated", truncated)

		return ReadFileOutput{
			Content:  content,
			Path:     input.Path,
			Size:     info.Size(),
			Language: language,
			IsText:   isText,
		}, nil
	}
}

// readImageInfo summarizes an image file instead of returning its bytes.
func readImageInfo(fs afero.Fs, path string, size int64, ext string) (ReadFileOutput, error) {
	if size > maxImageSizeBytes {
		return ReadFileOutput{}, fmt.Errorf("image file too large: %s (max %s)",
			toolsutil.FormatBytes(size),
			toolsutil.FormatBytes(maxImageSizeBytes))
	}

	if _, err := fs.Stat(path); err != nil {
		return ReadFileOutput{}, fmt.Errorf("failed to read image file: %v", err)
	}

	summary := fmt.Sprintf("[Image file: %s, Size: %s, Format: %s]",
		filepath.Base(path),
		toolsutil.FormatBytes(size),
		strings.TrimPrefix(ext, "."))

	return ReadFileOutput{
		Content:  summary,
		Path:     path,
		Size:     size,
		Language: "image",
		IsText:   false,
	}, nil
}

// readWithLimits reads a file respecting the line count and line length caps.
func readWithLimits(file afero.File, includeLineNumbers bool) (string, bool, error) {
	scanner := bufio.NewScanner(file)
	var lines []string
	lineNum := 0
	truncated := false

	scanner.Split(func(data []byte, atEOF bool) (advance int, token []byte, err error) {
		advance, token, err = bufio.ScanLines(data, atEOF)
		if len(token) > maxLineLength {
			token = token[:maxLineLength]
			truncated = true
		}
		return
	})

	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		lineNum++
		if lineNum > maxLines {
			truncated = true
			break
		}

		line := scanner.Text()
		if includeLineNumbers {
			line = fmt.Sprintf("%d: %s", lineNum, line)
		}
		lines = append(lines, line)
	}

	if err := scanner.Err(); err != nil && err != io.EOF {
		return "", false, err
	}

	return strings.Join(lines, "\n"), truncated, nil
}

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true,
	".svg": true, ".webp": true, ".ico": true, ".tiff": true, ".tif": true,
	".heic": true, ".heif": true, ".avif": true, ".jfif": true,
}

func isImageFile(ext string) bool {
	return imageExtensions[ext]
}
