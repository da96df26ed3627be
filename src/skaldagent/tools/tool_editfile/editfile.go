package tool_editfile

import (
	"context"
	"fmt"
	"strings"
	"time"

	udiff "github.com/aymanbagabas/go-udiff"
	"github.com/skald-dev/skald/src/agent"
	"github.com/skald-dev/skald/src/skaldagent/toolsutil"
	"github.com/spf13/afero"
)

// Tool name constant
const Name = "edit_file"

const editFilePrompt = `Performs exact string replacements in files.

Usage:
- Read the file with read_file before editing so old_content matches the file exactly, including whitespace and indentation.
- The edit FAILS if old_content appears more than once in the file. Either provide a larger snippet with more surrounding context to make it unique, or set replace_all to change every occurrence.
- Use replace_all when renaming a symbol across the whole file.
- Prefer this tool over write_file for changes to existing files.
- The response includes a unified diff of the change so you can verify what was applied.`

// EditFileInput represents the parameters for edit_file
type EditFileInput struct {
	Path         string `json:"path" required:"true" description:"The file path to edit"`
	OldContent   string `json:"old_content" required:"true" description:"The exact content to replace"`
	NewContent   string `json:"new_content" required:"true" description:"The new content to replace with"`
	ReplaceAll   bool   `json:"replace_all,omitempty" description:"Replace every occurrence instead of requiring a unique match"`
	CreateBackup bool   `json:"create_backup,omitempty" description:"Create a backup before editing"`
}

// EditFileOutput represents the response from edit_file
type EditFileOutput struct {
	Path          string `json:"path" description:"The file path that was edited"`
	OldSize       int    `json:"old_size" description:"Size of the file before the edit"`
	NewSize       int    `json:"new_size" description:"Size of the file after the edit"`
	Replacements  int    `json:"replacements" description:"Number of occurrences replaced"`
	Diff          string `json:"diff,omitempty" description:"Unified diff of the change"`
	BackupCreated bool   `json:"backup_created" description:"Whether a backup was created"`
}

// Tool returns the edit_file tool definition using GenericTool
func Tool(fs afero.Fs) (agent.Tool, error) {
	return agent.NewGenericTool(Name, editFilePrompt, makeEditFileHandler(fs))
}

// makeEditFileHandler creates a type-safe handler for the edit_file tool
func makeEditFileHandler(fs afero.Fs) func(ctx context.Context, input EditFileInput) (EditFileOutput, error) {
	return func(ctx context.Context, input EditFileInput) (EditFileOutput, error) {
		select {
		case <-ctx.Done():
			return EditFileOutput{}, fmt.Errorf("operation cancelled")
		default:
		}

		if !toolsutil.IsPathSafe(input.Path) {
			toolsutil.GetLogger().Error("unsafe path rejected", "path", input.Path)
			return EditFileOutput{}, fmt.Errorf("unsafe path: %s", input.Path)
		}

		if input.OldContent == "" {
			return EditFileOutput{}, fmt.Errorf("old_content must not be empty")
		}
		if err := toolsutil.ValidateFileSize(int64(len(input.NewContent))); err != nil {
			return EditFileOutput{}, fmt.Errorf("new content too large: %v", err)
		}

		toolsutil.GetLogger().Info("editing file", "path", input.Path, "replace_all", input.ReplaceAll)

		content, err := afero.ReadFile(fs, input.Path)
		if err != nil {
			toolsutil.GetLogger().Error("failed to read file", "path", input.Path, "error", err)
			return EditFileOutput{}, fmt.Errorf("failed to read file: %v", err)
		}
		current := string(content)

		occurrences := strings.Count(current, input.OldContent)
		switch {
		case occurrences == 0:
			toolsutil.GetLogger().Error("old content not found in file", "path", input.Path)
			return EditFileOutput{}, fmt.Errorf("old content not found in file")
		case occurrences > 1 && !input.ReplaceAll:
			return EditFileOutput{}, fmt.Errorf("old content appears %d times in file; provide more context or set replace_all", occurrences)
		}

		if input.CreateBackup {
			backupPath := input.Path + ".backup." + time.Now().Format("20060102_150405")
			if err := afero.WriteFile(fs, backupPath, content, 0644); err != nil {
				toolsutil.GetLogger().Error("failed to create backup", "path", backupPath, "error", err)
				return EditFileOutput{}, fmt.Errorf("failed to create backup: %v", err)
			}
			toolsutil.GetLogger().Info("backup created", "path", backupPath)
		}

		replacements := 1
		var updated string
		if input.ReplaceAll {
			replacements = occurrences
			updated = strings.ReplaceAll(current, input.OldContent, input.NewContent)
		} else {
			updated = strings.Replace(current, input.OldContent, input.NewContent, 1)
		}

		select {
		case <-ctx.Done():
			return EditFileOutput{}, fmt.Errorf("operation cancelled")
		default:
		}

		if err := afero.WriteFile(fs, input.Path, []byte(updated), 0644); err != nil {
			toolsutil.GetLogger().Error("failed to write file", "path", input.Path, "error", err)
			return EditFileOutput{}, fmt.Errorf("failed to write file: %v", err)
		}

		rel := strings.TrimPrefix(input.Path, "/")
		diff := udiff.Unified("a/"+rel, "b/"+rel, current, updated)

		toolsutil.GetLogger().Info("file edited", "path", input.Path, "replacements", replacements, "old_size", len(current), "new_size", len(updated))

		return EditFileOutput{
			Path:          input.Path,
			OldSize:       len(current),
			NewSize:       len(updated),
			Replacements:  replacements,
			Diff:          diff,
			BackupCreated: input.CreateBackup,
		}, nil
	}
}
