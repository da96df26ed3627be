package tool_copyfile

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/skald-dev/skald/src/agent"
	"github.com/skald-dev/skald/src/skaldagent/toolsutil"
	"github.com/spf13/afero"
)

// Tool name constant
const Name = "copy_file"

const copyFilePrompt = `Copy a file or directory from one location to another. Creates the destination directory if it doesn't exist. Set recursive to true to copy a directory tree.`

// CopyFileInput represents the parameters for copy_file
type CopyFileInput struct {
	Source      string `json:"source" required:"true" description:"The source file or directory path"`
	Destination string `json:"destination" required:"true" description:"The destination file or directory path"`
	Overwrite   bool   `json:"overwrite,omitempty" description:"Overwrite destination if it exists"`
	Recursive   bool   `json:"recursive,omitempty" description:"Copy directories recursively"`
	CreateDirs  bool   `json:"create_dirs,omitempty" default:"true" description:"Create destination directories if they don't exist"`
}

// CopyFileOutput represents the response from copy_file
type CopyFileOutput struct {
	Source      string `json:"source" description:"The source path that was copied"`
	Destination string `json:"destination" description:"The destination path"`
	Copied      bool   `json:"copied" description:"Whether the copy happened"`
	Overwritten bool   `json:"overwritten" description:"Whether an existing destination was overwritten"`
	BytesCopied int64  `json:"bytes_copied" description:"Number of bytes copied"`
	Size        int64  `json:"size" description:"Size of the source file"`
	FilesCopied int    `json:"files_copied,omitempty" description:"Number of files copied (for directories)"`
	IsDirectory bool   `json:"is_directory,omitempty" description:"Whether the copied item was a directory"`
}

// Tool returns the copy_file tool definition using GenericTool
func Tool(fs afero.Fs) (agent.Tool, error) {
	return agent.NewGenericTool(Name, copyFilePrompt, makeCopyFileHandler(fs))
}

// makeCopyFileHandler creates a type-safe handler for the copy_file tool
func makeCopyFileHandler(fs afero.Fs) func(ctx context.Context, input CopyFileInput) (CopyFileOutput, error) {
	return func(ctx context.Context, input CopyFileInput) (CopyFileOutput, error) {
		select {
		case <-ctx.Done():
			return CopyFileOutput{}, fmt.Errorf("operation cancelled")
		default:
		}

		if !toolsutil.IsPathSafe(input.Source) || !toolsutil.IsPathSafe(input.Destination) {
			toolsutil.GetLogger().Error("unsafe path rejected", "source", input.Source, "destination", input.Destination)
			return CopyFileOutput{}, fmt.Errorf("unsafe path")
		}

		toolsutil.GetLogger().Info("copying", "source", input.Source, "destination", input.Destination, "overwrite", input.Overwrite)

		sourceInfo, err := fs.Stat(input.Source)
		if err != nil {
			toolsutil.GetLogger().Error("source not found", "source", input.Source, "error", err)
			return CopyFileOutput{}, fmt.Errorf("source file not found: %s", input.Source)
		}

		if sourceInfo.IsDir() {
			if !input.Recursive {
				return CopyFileOutput{}, fmt.Errorf("source is a directory, enable recursive copying")
			}
			return copyDirectory(ctx, fs, input, sourceInfo)
		}

		if err := toolsutil.ValidateFileSize(sourceInfo.Size()); err != nil {
			toolsutil.GetLogger().Error("source file too large", "source", input.Source, "size", sourceInfo.Size())
			return CopyFileOutput{}, err
		}

		_, err = fs.Stat(input.Destination)
		destinationExists := err == nil
		if destinationExists && !input.Overwrite {
			return CopyFileOutput{}, fmt.Errorf("destination exists and overwrite not allowed: %s", input.Destination)
		}

		if input.CreateDirs {
			destDir := filepath.Dir(input.Destination)
			if err := fs.MkdirAll(destDir, 0755); err != nil {
				toolsutil.GetLogger().Error("failed to create destination directory", "dir", destDir, "error", err)
				return CopyFileOutput{}, fmt.Errorf("failed to create destination directory: %v", err)
			}
		}

		select {
		case <-ctx.Done():
			return CopyFileOutput{}, fmt.Errorf("operation cancelled")
		default:
		}

		bytesCopied, err := copyOne(fs, input.Source, input.Destination, sourceInfo.Mode())
		if err != nil {
			toolsutil.GetLogger().Error("copy failed", "source", input.Source, "destination", input.Destination, "error", err)
			return CopyFileOutput{}, err
		}

		toolsutil.GetLogger().Info("file copied", "source", input.Source, "destination", input.Destination, "bytes", bytesCopied)

		return CopyFileOutput{
			Source:      input.Source,
			Destination: input.Destination,
			Copied:      true,
			Overwritten: destinationExists,
			BytesCopied: bytesCopied,
			Size:        sourceInfo.Size(),
		}, nil
	}
}

// copyOne copies a single file and carries the source permissions over.
func copyOne(fs afero.Fs, source, destination string, mode os.FileMode) (int64, error) {
	sourceFile, err := fs.Open(source)
	if err != nil {
		return 0, fmt.Errorf("failed to open source file: %v", err)
	}
	defer sourceFile.Close()

	destFile, err := fs.Create(destination)
	if err != nil {
		return 0, fmt.Errorf("failed to create destination file: %v", err)
	}
	defer destFile.Close()

	bytesCopied, err := io.Copy(destFile, sourceFile)
	if err != nil {
		return 0, fmt.Errorf("failed to copy file content: %v", err)
	}

	if err := fs.Chmod(destination, mode); err != nil {
		toolsutil.GetLogger().Warn("failed to set file permissions", "destination", destination, "error", err)
	}
	return bytesCopied, nil
}

// copyDirectory copies a directory tree rooted at input.Source.
func copyDirectory(ctx context.Context, fs afero.Fs, input CopyFileInput, sourceInfo os.FileInfo) (CopyFileOutput, error) {
	_, err := fs.Stat(input.Destination)
	destinationExists := err == nil
	if destinationExists && !input.Overwrite {
		return CopyFileOutput{}, fmt.Errorf("destination exists and overwrite not allowed: %s", input.Destination)
	}

	if err := fs.MkdirAll(input.Destination, sourceInfo.Mode()); err != nil {
		return CopyFileOutput{}, fmt.Errorf("failed to create destination directory: %v", err)
	}

	var totalBytes int64
	var filesCopied int

	err = afero.Walk(fs, input.Source, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("operation cancelled")
		default:
		}

		relPath, err := filepath.Rel(input.Source, path)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}

		destPath := filepath.Join(input.Destination, relPath)

		if info.IsDir() {
			return fs.MkdirAll(destPath, info.Mode())
		}

		if err := fs.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
			return err
		}
		copied, err := copyOne(fs, path, destPath, info.Mode())
		if err != nil {
			return err
		}
		totalBytes += copied
		filesCopied++
		return nil
	})
	if err != nil {
		toolsutil.GetLogger().Error("directory copy failed", "source", input.Source, "destination", input.Destination, "error", err)
		return CopyFileOutput{}, fmt.Errorf("failed to copy directory: %v", err)
	}

	toolsutil.GetLogger().Info("directory copied", "source", input.Source, "destination", input.Destination, "files", filesCopied, "bytes", totalBytes)

	return CopyFileOutput{
		Source:      input.Source,
		Destination: input.Destination,
		Copied:      true,
		Overwritten: destinationExists,
		BytesCopied: totalBytes,
		FilesCopied: filesCopied,
		IsDirectory: true,
	}, nil
}
