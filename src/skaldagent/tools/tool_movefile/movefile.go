package tool_movefile

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
const Name = "move_file"

const moveFilePrompt = `Move or rename a file or directory. Creates the destination's parent directory if it doesn't exist.`

// MoveFileInput represents the parameters for move_file
type MoveFileInput struct {
	Source      string `json:"source" required:"true" description:"The source file path"`
	Destination string `json:"destination" required:"true" description:"The destination file path"`
	Overwrite   bool   `json:"overwrite,omitempty" description:"Whether to overwrite the destination if it exists"`
}

// MoveFileOutput represents the response from move_file
type MoveFileOutput struct {
	Source       string `json:"source" description:"The source path"`
	Destination  string `json:"destination" description:"The destination path"`
	Moved        bool   `json:"moved" description:"Whether the move succeeded"`
	Overwritten  bool   `json:"overwritten" description:"Whether an existing destination was overwritten"`
	WasDirectory bool   `json:"was_directory" description:"Whether the moved item was a directory"`
	Size         int64  `json:"size,omitempty" description:"Size of the moved file"`
}

// Tool returns the move_file tool definition using GenericTool
func Tool(fs afero.Fs) (agent.Tool, error) {
	return agent.NewGenericTool(Name, moveFilePrompt, makeMoveFileHandler(fs))
}

// makeMoveFileHandler creates a type-safe handler for the move_file tool
func makeMoveFileHandler(fs afero.Fs) func(ctx context.Context, input MoveFileInput) (MoveFileOutput, error) {
	return func(ctx context.Context, input MoveFileInput) (MoveFileOutput, error) {
		select {
		case <-ctx.Done():
			return MoveFileOutput{}, fmt.Errorf("operation cancelled")
		default:
		}

		// Safety check: validate both paths
		if !toolsutil.IsPathSafe(input.Source) {
			toolsutil.GetLogger().Error("unsafe source path rejected", "path", input.Source)
			return MoveFileOutput{}, fmt.Errorf("unsafe source path: %s", input.Source)
		}
		if !toolsutil.IsPathSafe(input.Destination) {
			toolsutil.GetLogger().Error("unsafe destination path rejected", "path", input.Destination)
			return MoveFileOutput{}, fmt.Errorf("unsafe destination path: %s", input.Destination)
		}

		toolsutil.GetLogger().Info("moving file", "source", input.Source, "destination", input.Destination, "overwrite", input.Overwrite)

		info, err := fs.Stat(input.Source)
		if err != nil {
			if os.IsNotExist(err) {
				return MoveFileOutput{}, fmt.Errorf("source does not exist: %s", input.Source)
			}
			toolsutil.GetLogger().Error("failed to stat source", "path", input.Source, "error", err)
			return MoveFileOutput{}, fmt.Errorf("failed to stat source: %v", err)
		}

		destinationExists := false
		if _, err := fs.Stat(input.Destination); err == nil {
			destinationExists = true
			if !input.Overwrite {
				return MoveFileOutput{}, fmt.Errorf("destination already exists: %s (use overwrite to replace)", input.Destination)
			}
		}

		if parent := filepath.Dir(input.Destination); parent != "." && parent != "/" {
			if err := fs.MkdirAll(parent, 0755); err != nil {
				toolsutil.GetLogger().Error("failed to create destination directory", "path", parent, "error", err)
				return MoveFileOutput{}, fmt.Errorf("failed to create destination directory: %v", err)
			}
		}

		select {
		case <-ctx.Done():
			return MoveFileOutput{}, fmt.Errorf("operation cancelled")
		default:
		}

		if destinationExists && input.Overwrite {
			if err := fs.RemoveAll(input.Destination); err != nil {
				toolsutil.GetLogger().Error("failed to remove existing destination", "path", input.Destination, "error", err)
				return MoveFileOutput{}, fmt.Errorf("failed to remove existing destination: %v", err)
			}
		}

		if err := fs.Rename(input.Source, input.Destination); err != nil {
			toolsutil.GetLogger().Error("failed to move file", "source", input.Source, "destination", input.Destination, "error", err)
			return MoveFileOutput{}, fmt.Errorf("failed to move file: %v", err)
		}

		toolsutil.GetLogger().Info("file moved successfully", "source", input.Source, "destination", input.Destination)

		return MoveFileOutput{
			Source:       input.Source,
			Destination:  input.Destination,
			Moved:        true,
			Overwritten:  destinationExists,
			WasDirectory: info.IsDir(),
			Size:         info.Size(),
		}, nil
	}
}
