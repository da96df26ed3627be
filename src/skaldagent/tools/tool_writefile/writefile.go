package tool_writefile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/skald-dev/skald/src/agent"
	"github.com/skald-dev/skald/src/skaldagent/toolsutil"
	"github.com/spf13/afero"
)

// Tool name constant
const Name = "write_file"

const writeFilePrompt = `Writes a file to the local filesystem.

Usage:
- This tool overwrites an existing file at the provided path.
- If the file already exists, read it with read_file first so you do not clobber content you have not seen.
- Prefer editing existing files with edit_file; only write whole files when creating something new or replacing a file wholesale.
- Set create_dirs to true to create missing parent directories.
- Never proactively create documentation files unless the user asked for them.`

// WriteFileInput represents the parameters for write_file
type WriteFileInput struct {
	Path       string `json:"path" required:"true" description:"The file path to write"`
	Content    string `json:"content" required:"true" description:"The content to write"`
	CreateDirs bool   `json:"create_dirs,omitempty" description:"Create parent directories if they don't exist"`
	Mode       int    `json:"mode,omitempty" description:"File permissions (octal, e.g. 644)"`
}

// WriteFileOutput represents the response from write_file
type WriteFileOutput struct {
	Path    string `json:"path" description:"The file path that was written"`
	Size    int    `json:"size" description:"Size of content written in bytes"`
	Success bool   `json:"success" description:"Whether the file was written successfully"`
}

// Tool returns the write_file tool definition using GenericTool
func Tool(fs afero.Fs) (agent.Tool, error) {
	return agent.NewGenericTool(Name, writeFilePrompt, makeWriteFileHandler(fs))
}

// makeWriteFileHandler creates a type-safe handler for the write_file tool
func makeWriteFileHandler(fs afero.Fs) func(ctx context.Context, input WriteFileInput) (WriteFileOutput, error) {
	return func(ctx context.Context, input WriteFileInput) (WriteFileOutput, error) {
		select {
		case <-ctx.Done():
			return WriteFileOutput{}, fmt.Errorf("operation cancelled")
		default:
		}

		if !toolsutil.IsPathSafe(input.Path) {
			toolsutil.GetLogger().Error("unsafe path rejected", "path", input.Path)
			return WriteFileOutput{}, fmt.Errorf("unsafe path: %s", input.Path)
		}

		if err := toolsutil.ValidateFileSize(int64(len(input.Content))); err != nil {
			toolsutil.GetLogger().Error("content too large", "path", input.Path, "size", len(input.Content))
			return WriteFileOutput{}, err
		}

		mode := os.FileMode(input.Mode)
		if input.Mode == 0 {
			mode = 0644
		}

		toolsutil.GetLogger().Info("writing file", "path", input.Path, "content_size", len(input.Content), "create_dirs", input.CreateDirs)

		dir := filepath.Dir(input.Path)
		if input.CreateDirs {
			if err := fs.MkdirAll(dir, 0755); err != nil {
				toolsutil.GetLogger().Error("failed to create directory", "dir", dir, "error", err)
				return WriteFileOutput{}, fmt.Errorf("failed to create directory: %v", err)
			}
		} else {
			if _, err := fs.Stat(dir); err != nil {
				toolsutil.GetLogger().Error("parent directory missing", "dir", dir)
				return WriteFileOutput{}, fmt.Errorf("directory does not exist: %s", dir)
			}
		}

		select {
		case <-ctx.Done():
			return WriteFileOutput{}, fmt.Errorf("operation cancelled")
		default:
		}

		if err := afero.WriteFile(fs, input.Path, []byte(input.Content), mode); err != nil {
			toolsutil.GetLogger().Error("failed to write file", "path", input.Path, "error", err)
			return WriteFileOutput{}, fmt.Errorf("failed to write file: %v", err)
		}

		toolsutil.GetLogger().Info("file written", "path", input.Path, "size", len(input.Content))

		return WriteFileOutput{
			Path:    input.Path,
			Size:    len(input.Content),
			Success: true,
		}, nil
	}
}
