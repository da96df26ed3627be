package tool_deletefile

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

func TestDeleteFileTool(t *testing.T) {
	tests := []struct {
		name          string
		setupFS       func(afero.Fs) error
		args          map[string]interface{}
		expectedError bool
		checkFS       func(t *testing.T, fs afero.Fs)
		checkResult   func(t *testing.T, result map[string]interface{})
	}{
		{
			name: "delete single file",
			setupFS: func(fs afero.Fs) error {
				return afero.WriteFile(fs, "/test.txt", []byte("content"), 0644)
			},
			args: map[string]interface{}{
				"path": "/test.txt",
			},
			checkFS: func(t *testing.T, fs afero.Fs) {
				exists, err := afero.Exists(fs, "/test.txt")
				require.NoError(t, err)
				assert.False(t, exists)
			},
			checkResult: func(t *testing.T, result map[string]interface{}) {
				assert.Equal(t, "/test.txt", result["path"])
				assert.Equal(t, true, result["deleted"])
				assert.Equal(t, false, result["was_directory"])
			},
		},
		{
			name: "delete empty directory",
			setupFS: func(fs afero.Fs) error {
				return fs.MkdirAll("/emptydir", 0755)
			},
			args: map[string]interface{}{
				"path": "/emptydir",
			},
			checkFS: func(t *testing.T, fs afero.Fs) {
				exists, err := afero.DirExists(fs, "/emptydir")
				require.NoError(t, err)
				assert.False(t, exists)
			},
			checkResult: func(t *testing.T, result map[string]interface{}) {
				assert.Equal(t, true, result["deleted"])
				assert.Equal(t, true, result["was_directory"])
			},
		},
		{
			name: "delete directory with contents",
			setupFS: func(fs afero.Fs) error {
				if err := fs.MkdirAll("/dir/subdir", 0755); err != nil {
					return err
				}
				return afero.WriteFile(fs, "/dir/subdir/file.txt", []byte("nested"), 0644)
			},
			args: map[string]interface{}{
				"path": "/dir",
			},
			checkFS: func(t *testing.T, fs afero.Fs) {
				exists, err := afero.Exists(fs, "/dir")
				require.NoError(t, err)
				assert.False(t, exists)
			},
			checkResult: func(t *testing.T, result map[string]interface{}) {
				assert.Equal(t, true, result["was_directory"])
			},
		},
		{
			name: "delete non-existent file reports reason",
			args: map[string]interface{}{
				"path": "/nonexistent.txt",
			},
			checkResult: func(t *testing.T, result map[string]interface{}) {
				assert.Equal(t, false, result["deleted"])
				assert.Equal(t, "file does not exist", result["reason"])
			},
		},
		{
			name: "delete with unsafe path",
			args: map[string]interface{}{
				"path": "../../../etc/passwd",
			},
			expectedError: true,
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
