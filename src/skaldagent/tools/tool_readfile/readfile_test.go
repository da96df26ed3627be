package tool_readfile

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/skald-dev/skald/src/aisdk"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, fs afero.Fs, args map[string]any) *aisdk.ToolResponse {
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

func decodeOutput(t *testing.T, response *aisdk.ToolResponse) ReadFileOutput {
	t.Helper()

	var out ReadFileOutput
	require.NoError(t, json.Unmarshal(response.Content, &out))
	return out
}

func TestReadFileTool(t *testing.T) {
	tests := []struct {
		name          string
		setupFS       func(afero.Fs) error
		args          map[string]any
		expectedError bool
		checkOutput   func(t *testing.T, out ReadFileOutput)
	}{
		{
			name: "read simple text file",
			setupFS: func(fs afero.Fs) error {
				return afero.WriteFile(fs, "/test.txt", []byte("Hello, World!"), 0644)
			},
			args: map[string]any{"path": "/test.txt"},
			checkOutput: func(t *testing.T, out ReadFileOutput) {
				assert.Equal(t, "Hello, World!", out.Content)
				assert.True(t, out.IsText)
			},
		},
		{
			name: "read file with line numbers",
			setupFS: func(fs afero.Fs) error {
				return afero.WriteFile(fs, "/test.txt", []byte("line1\nline2\nline3"), 0644)
			},
			args: map[string]any{"path": "/test.txt", "line_numbers": true},
			checkOutput: func(t *testing.T, out ReadFileOutput) {
				assert.Contains(t, out.Content, "1: line1")
				assert.Contains(t, out.Content, "2: line2")
				assert.Contains(t, out.Content, "3: line3")
			},
		},
		{
			name:          "read non-existent file",
			args:          map[string]any{"path": "/nonexistent.txt"},
			expectedError: true,
		},
		{
			name:          "read file with unsafe path",
			args:          map[string]any{"path": "../../../etc/passwd"},
			expectedError: true,
		},
		{
			name: "read directory fails",
			setupFS: func(fs afero.Fs) error {
				return fs.MkdirAll("/somedir", 0755)
			},
			args:          map[string]any{"path": "/somedir"},
			expectedError: true,
		},
		{
			name: "read empty file returns placeholder",
			setupFS: func(fs afero.Fs) error {
				return afero.WriteFile(fs, "/empty.txt", []byte(""), 0644)
			},
			args: map[string]any{"path": "/empty.txt"},
			checkOutput: func(t *testing.T, out ReadFileOutput) {
				assert.Contains(t, out.Content, "empty contents")
			},
		},
		{
			name: "read multi-line file",
			setupFS: func(fs afero.Fs) error {
				var b strings.Builder
				for i := 1; i <= 100; i++ {
					fmt.Fprintf(&b, "Line %d\n", i)
				}
				return afero.WriteFile(fs, "/large.txt", []byte(b.String()), 0644)
			},
			args: map[string]any{"path": "/large.txt"},
			checkOutput: func(t *testing.T, out ReadFileOutput) {
				assert.Contains(t, out.Content, "Line 1\n")
				assert.Contains(t, out.Content, "Line 100")
				assert.NotContains(t, out.Content, "[File truncated")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			if tt.setupFS != nil {
				require.NoError(t, tt.setupFS(fs))
			}

			response := execute(t, fs, tt.args)

			if tt.expectedError {
				assert.True(t, response.IsError)
				return
			}

			assert.False(t, response.IsError)
			if tt.checkOutput != nil {
				tt.checkOutput(t, decodeOutput(t, response))
			}
		})
	}
}

func TestReadFileToolTruncatesLongFiles(t *testing.T) {
	fs := afero.NewMemMapFs()

	var b strings.Builder
	for i := 1; i <= maxLines+50; i++ {
		fmt.Fprintf(&b, "row %d\n", i)
	}
	require.NoError(t, afero.WriteFile(fs, "/big.txt", []byte(b.String()), 0644))

	response := execute(t, fs, map[string]any{"path": "/big.txt"})
	require.False(t, response.IsError)

	out := decodeOutput(t, response)
	assert.Contains(t, out.Content, fmt.Sprintf("[File truncated at %d lines]", maxLines))
	assert.NotContains(t, out.Content, fmt.Sprintf("row %d", maxLines+1))
}

func TestReadFileToolMarksBinaryContent(t *testing.T) {
	fs := afero.NewMemMapFs()

	binary := []byte{0x7f, 0x45, 0x4c, 0x46, 0x00, 0x01, 0x02, 0xff}
	require.NoError(t, afero.WriteFile(fs, "/blob.bin", binary, 0644))

	response := execute(t, fs, map[string]any{"path": "/blob.bin"})
	require.False(t, response.IsError)

	out := decodeOutput(t, response)
	assert.False(t, out.IsText)
}

func TestReadFileToolDescribesImages(t *testing.T) {
	fs := afero.NewMemMapFs()

	require.NoError(t, afero.WriteFile(fs, "/shot.png", []byte{0x89, 0x50, 0x4e, 0x47}, 0644))

	response := execute(t, fs, map[string]any{"path": "/shot.png"})
	require.False(t, response.IsError)

	out := decodeOutput(t, response)
	assert.Contains(t, out.Content, "Image file: shot.png")
	assert.Equal(t, "image", out.Language)
	assert.False(t, out.IsText)
}
