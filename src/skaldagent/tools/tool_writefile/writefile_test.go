package tool_writefile

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/skald-dev/skald/src/aisdk"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runTool(t *testing.T, fs afero.Fs, args map[string]any) *aisdk.ToolResponse {
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

func TestWriteFileTool(t *testing.T) {
	tests := []struct {
		name          string
		setupFS       func(afero.Fs) error
		args          map[string]any
		expectedError bool
		checkFS       func(t *testing.T, fs afero.Fs)
	}{
		{
			name: "write new file",
			args: map[string]any{
				"path":    "/test.txt",
				"content": "Hello, World!",
			},
			checkFS: func(t *testing.T, fs afero.Fs) {
				content, err := afero.ReadFile(fs, "/test.txt")
				require.NoError(t, err)
				assert.Equal(t, "Hello, World!", string(content))
			},
		},
		{
			name: "overwrite existing file",
			setupFS: func(fs afero.Fs) error {
				return afero.WriteFile(fs, "/test.txt", []byte("Old content"), 0644)
			},
			args: map[string]any{
				"path":    "/test.txt",
				"content": "New content",
			},
			checkFS: func(t *testing.T, fs afero.Fs) {
				content, err := afero.ReadFile(fs, "/test.txt")
				require.NoError(t, err)
				assert.Equal(t, "New content", string(content))
			},
		},
		{
			name: "write file with create_dirs",
			args: map[string]any{
				"path":        "/deep/nested/dir/file.txt",
				"content":     "Nested file",
				"create_dirs": true,
			},
			checkFS: func(t *testing.T, fs afero.Fs) {
				exists, err := afero.DirExists(fs, "/deep/nested/dir")
				require.NoError(t, err)
				assert.True(t, exists)

				content, err := afero.ReadFile(fs, "/deep/nested/dir/file.txt")
				require.NoError(t, err)
				assert.Equal(t, "Nested file", string(content))
			},
		},
		{
			name: "missing parent without create_dirs fails",
			args: map[string]any{
				"path":    "/nonexistent/dir/file.txt",
				"content": "Should fail",
			},
			expectedError: true,
		},
		{
			name: "unsafe path rejected",
			args: map[string]any{
				"path":    "/etc/passwd",
				"content": "nope",
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

			assert.False(t, response.IsError)

			var out WriteFileOutput
			require.NoError(t, json.Unmarshal(response.Content, &out))
			assert.True(t, out.Success)

			if tt.checkFS != nil {
				tt.checkFS(t, fs)
			}
		})
	}
}

func TestWriteFileToolReportsSize(t *testing.T) {
	fs := afero.NewMemMapFs()

	response := runTool(t, fs, map[string]any{
		"path":    "/sized.txt",
		"content": "12345",
	})
	require.False(t, response.IsError)

	var out WriteFileOutput
	require.NoError(t, json.Unmarshal(response.Content, &out))
	assert.Equal(t, 5, out.Size)
	assert.Equal(t, "/sized.txt", out.Path)
}
