package tool_getfileinfo

import (
	"context"
	"encoding/json"
	"testing"
	"time"

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

func TestGetFileInfoTool(t *testing.T) {
	tests := []struct {
		name          string
		setupFS       func(afero.Fs) error
		args          map[string]interface{}
		expectedError bool
		checkResult   func(t *testing.T, result map[string]interface{})
	}{
		{
			name: "get info for regular file",
			setupFS: func(fs afero.Fs) error {
				return afero.WriteFile(fs, "/test.txt", []byte("Hello, World!"), 0644)
			},
			args: map[string]interface{}{
				"path": "/test.txt",
			},
			checkResult: func(t *testing.T, result map[string]interface{}) {
				assert.Equal(t, "/test.txt", result["path"])
				assert.Equal(t, "test.txt", result["name"])
				assert.Equal(t, false, result["is_dir"])
				assert.Equal(t, float64(13), result["size"])
				assert.Equal(t, "13 B", result["size_human"])
				assert.Equal(t, ".txt", result["extension"])
				assert.Equal(t, "text", result["language"])
				assert.Equal(t, true, result["exists"])
				assert.NotNil(t, result["mod_time"])
			},
		},
		{
			name: "get info for directory",
			setupFS: func(fs afero.Fs) error {
				return fs.MkdirAll("/testdir", 0755)
			},
			args: map[string]interface{}{
				"path": "/testdir",
			},
			checkResult: func(t *testing.T, result map[string]interface{}) {
				assert.Equal(t, "/testdir", result["path"])
				assert.Equal(t, "testdir", result["name"])
				assert.Equal(t, true, result["is_dir"])
				assert.NotNil(t, result["mod_time"])
			},
		},
		{
			name: "get info for directory with contents",
			setupFS: func(fs afero.Fs) error {
				if err := fs.MkdirAll("/dir", 0755); err != nil {
					return err
				}
				if err := afero.WriteFile(fs, "/dir/file1.txt", []byte("content1"), 0644); err != nil {
					return err
				}
				if err := afero.WriteFile(fs, "/dir/file2.py", []byte("content2"), 0644); err != nil {
					return err
				}
				return fs.MkdirAll("/dir/subdir", 0755)
			},
			args: map[string]interface{}{
				"path": "/dir",
			},
			checkResult: func(t *testing.T, result map[string]interface{}) {
				assert.Equal(t, true, result["is_dir"])
				assert.Equal(t, float64(3), result["entry_count"])
				assert.Equal(t, float64(2), result["file_count"])
				assert.Equal(t, float64(1), result["dir_count"])
			},
		},
		{
			name: "get info for non-existent file",
			args: map[string]interface{}{
				"path": "/nonexistent.txt",
			},
			expectedError: true,
		},
		{
			name: "get info with unsafe path",
			args: map[string]interface{}{
				"path": "../../../etc/passwd",
			},
			expectedError: true,
		},
		{
			name: "get info for python file",
			setupFS: func(fs afero.Fs) error {
				content := `#!/usr/bin/env python3
def main():
    print("Hello, World!")

if __name__ == "__main__":
    main()
`
				return afero.WriteFile(fs, "/script.py", []byte(content), 0755)
			},
			args: map[string]interface{}{
				"path": "/script.py",
			},
			checkResult: func(t *testing.T, result map[string]interface{}) {
				assert.Equal(t, "python", result["language"])
				assert.Equal(t, "text/x-python", result["mime_type"])
				assert.Greater(t, result["size"].(float64), float64(0))
			},
		},
		{
			name: "get info for empty directory",
			setupFS: func(fs afero.Fs) error {
				return fs.MkdirAll("/empty", 0755)
			},
			args: map[string]interface{}{
				"path": "/empty",
			},
			checkResult: func(t *testing.T, result map[string]interface{}) {
				assert.Equal(t, true, result["is_dir"])
				assert.Equal(t, float64(0), result["entry_count"])
				assert.Equal(t, float64(0), result["file_count"])
				assert.Equal(t, float64(0), result["dir_count"])
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
				return
			}

			assert.False(t, response.IsError)

			var result map[string]interface{}
			require.NoError(t, json.Unmarshal(response.Content, &result))
			if tt.checkResult != nil {
				tt.checkResult(t, result)
			}
		})
	}
}

func TestGetFileInfoToolTimeFormat(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/test.txt", []byte("test"), 0644))

	response := runTool(t, fs, map[string]interface{}{"path": "/test.txt"})
	assert.False(t, response.IsError)

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(response.Content, &result))

	_, err := time.Parse(time.RFC3339, result["mod_time"].(string))
	assert.NoError(t, err)
}
