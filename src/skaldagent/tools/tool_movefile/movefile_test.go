package tool_movefile

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/skald-dev/skald/src/aisdk"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runTool(t *testing.T, fs afero.Fs, args map[string]interface{}) *aisdk.ToolResponse {
	t.Helper()

	tool, err := Tool(fs)
	require.NoError(t, err)

	argsJSON, err := json.Marshal(args)
	require.NoError(t, err)

	response, err := tool.Execute(context.Background(), &aisdk.ToolCall{
		Function: aisdk.FunctionCall{Arguments: argsJSON},
	})
	require.NoError(t, err)
	return response
}

func TestMoveFileTool(t *testing.T) {
	tests := []struct {
		name          string
		setupFS       func(afero.Fs) error
		args          map[string]interface{}
		expectedError bool
		checkFS       func(t *testing.T, fs afero.Fs)
		checkResult   func(t *testing.T, result map[string]interface{})
	}{
		{
			name: "move file to new location",
			setupFS: func(fs afero.Fs) error {
				return afero.WriteFile(fs, "/source.txt", []byte("file content"), 0644)
			},
			args: map[string]interface{}{
				"source":      "/source.txt",
				"destination": "/destination.txt",
			},
			checkFS: func(t *testing.T, fs afero.Fs) {
				exists, err := afero.Exists(fs, "/source.txt")
				require.NoError(t, err)
				assert.False(t, exists)

				content, err := afero.ReadFile(fs, "/destination.txt")
				require.NoError(t, err)
				assert.Equal(t, "file content", string(content))
			},
			checkResult: func(t *testing.T, result map[string]interface{}) {
				assert.Equal(t, "/source.txt", result["source"])
				assert.Equal(t, "/destination.txt", result["destination"])
				assert.Equal(t, true, result["moved"])
				assert.Equal(t, false, result["was_directory"])
			},
		},
		{
			name: "rename file in same directory",
			setupFS: func(fs afero.Fs) error {
				if err := fs.MkdirAll("/dir", 0755); err != nil {
					return err
				}
				return afero.WriteFile(fs, "/dir/old.txt", []byte("content"), 0644)
			},
			args: map[string]interface{}{
				"source":      "/dir/old.txt",
				"destination": "/dir/new.txt",
			},
			checkFS: func(t *testing.T, fs afero.Fs) {
				exists, err := afero.Exists(fs, "/dir/old.txt")
				require.NoError(t, err)
				assert.False(t, exists)

				content, err := afero.ReadFile(fs, "/dir/new.txt")
				require.NoError(t, err)
				assert.Equal(t, "content", string(content))
			},
		},
		{
			name: "move directory",
			setupFS: func(fs afero.Fs) error {
				if err := fs.MkdirAll("/sourcedir/subdir", 0755); err != nil {
					return err
				}
				if err := afero.WriteFile(fs, "/sourcedir/file.txt", []byte("file1"), 0644); err != nil {
					return err
				}
				return afero.WriteFile(fs, "/sourcedir/subdir/file2.txt", []byte("file2"), 0644)
			},
			args: map[string]interface{}{
				"source":      "/sourcedir",
				"destination": "/destdir",
			},
			checkFS: func(t *testing.T, fs afero.Fs) {
				exists, err := afero.DirExists(fs, "/sourcedir")
				require.NoError(t, err)
				assert.False(t, exists)

				content, err := afero.ReadFile(fs, "/destdir/file.txt")
				require.NoError(t, err)
				assert.Equal(t, "file1", string(content))

				content, err = afero.ReadFile(fs, "/destdir/subdir/file2.txt")
				require.NoError(t, err)
				assert.Equal(t, "file2", string(content))
			},
			checkResult: func(t *testing.T, result map[string]interface{}) {
				assert.Equal(t, true, result["was_directory"])
			},
		},
		{
			name: "move to existing file with overwrite",
			setupFS: func(fs afero.Fs) error {
				if err := afero.WriteFile(fs, "/source.txt", []byte("new content"), 0644); err != nil {
					return err
				}
				return afero.WriteFile(fs, "/dest.txt", []byte("old content"), 0644)
			},
			args: map[string]interface{}{
				"source":      "/source.txt",
				"destination": "/dest.txt",
				"overwrite":   true,
			},
			checkFS: func(t *testing.T, fs afero.Fs) {
				exists, err := afero.Exists(fs, "/source.txt")
				require.NoError(t, err)
				assert.False(t, exists)

				content, err := afero.ReadFile(fs, "/dest.txt")
				require.NoError(t, err)
				assert.Equal(t, "new content", string(content))
			},
			checkResult: func(t *testing.T, result map[string]interface{}) {
				assert.Equal(t, true, result["overwritten"])
			},
		},
		{
			name: "move to existing file without overwrite fails",
			setupFS: func(fs afero.Fs) error {
				if err := afero.WriteFile(fs, "/source.txt", []byte("new content"), 0644); err != nil {
					return err
				}
				return afero.WriteFile(fs, "/dest.txt", []byte("old content"), 0644)
			},
			args: map[string]interface{}{
				"source":      "/source.txt",
				"destination": "/dest.txt",
			},
			expectedError: true,
			checkFS: func(t *testing.T, fs afero.Fs) {
				content, err := afero.ReadFile(fs, "/source.txt")
				require.NoError(t, err)
				assert.Equal(t, "new content", string(content))

				content, err = afero.ReadFile(fs, "/dest.txt")
				require.NoError(t, err)
				assert.Equal(t, "old content", string(content))
			},
		},
		{
			name: "move non-existent file",
			args: map[string]interface{}{
				"source":      "/nonexistent.txt",
				"destination": "/dest.txt",
			},
			expectedError: true,
		},
		{
			name: "move with unsafe source path",
			args: map[string]interface{}{
				"source":      "../../../etc/passwd",
				"destination": "/dest.txt",
			},
			expectedError: true,
		},
		{
			name: "move with unsafe destination path",
			setupFS: func(fs afero.Fs) error {
				return afero.WriteFile(fs, "/source.txt", []byte("content"), 0644)
			},
			args: map[string]interface{}{
				"source":      "/source.txt",
				"destination": "../../../etc/passwd",
			},
			expectedError: true,
		},
		{
			name: "move file into created destination directory",
			setupFS: func(fs afero.Fs) error {
				return afero.WriteFile(fs, "/file.txt", []byte("content"), 0644)
			},
			args: map[string]interface{}{
				"source":      "/file.txt",
				"destination": "/destdir/file.txt",
			},
			checkFS: func(t *testing.T, fs afero.Fs) {
				exists, err := afero.Exists(fs, "/file.txt")
				require.NoError(t, err)
				assert.False(t, exists)

				content, err := afero.ReadFile(fs, "/destdir/file.txt")
				require.NoError(t, err)
				assert.Equal(t, "content", string(content))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			if tt.setupFS != nil {
				require.NoError(t, tt.setupFS(fs))
			}

			response := runTool(t, fs, tt.args)

			if tt.expectedError {
				assert.True(t, response.IsError)
				if tt.checkFS != nil {
					tt.checkFS(t, fs)
				}
				return
			}

			assert.False(t, response.IsError, "unexpected error: %s", string(response.Content))

			var result map[string]interface{}
			require.NoError(t, json.Unmarshal(response.Content, &result))
			if tt.checkResult != nil {
				tt.checkResult(t, result)
			}
			if tt.checkFS != nil {
				tt.checkFS(t, fs)
			}
		})
	}
}
