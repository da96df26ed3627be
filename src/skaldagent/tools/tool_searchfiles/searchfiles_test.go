package tool_searchfiles

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/skald-dev/skald/src/aisdk"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, fs afero.Fs, params map[string]interface{}) *aisdk.ToolResponse {
	t.Helper()

	tool, err := Tool(fs)
	require.NoError(t, err)

	paramsJSON, err := json.Marshal(params)
	require.NoError(t, err)

	resp, err := tool.Execute(context.Background(), &aisdk.ToolCall{
		Function: aisdk.FunctionCall{Arguments: paramsJSON},
	})
	require.NoError(t, err)
	return resp
}

func TestSearchFilesTool(t *testing.T) {
	fs := afero.NewMemMapFs()

	testFiles := map[string]string{
		"/project/main.go": `package main

import "fmt"

func main() {
	fmt.Println("Hello, World!")
	log.Error("This is an error message")
}`,
		"/project/utils.go": `package main

import "log"

func logError(msg string) {
	log.Error(msg)
}`,
		"/project/frontend/app.js": `console.log("Starting app");
var errorCount = 0;

function handleError(err) {
    console.error("Error occurred:", err);
    errorCount++;
}`,
		"/project/docs/readme.md": `# Project Documentation

This project demonstrates error handling patterns.

## Error Handling
- Use log.Error for Go errors
- Use console.error for JavaScript errors`,
		"/project/binary.exe": string([]byte{0x00, 0x01, 0x02, 0x03}),
		"/project/empty.txt":  "",
	}

	for path, content := range testFiles {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0644))
	}

	tests := []struct {
		name        string
		pattern     string
		path        string
		filePattern string
		expectErr   bool
		expectFunc  func(t *testing.T, response map[string]interface{})
	}{
		{
			name:    "search for error patterns",
			pattern: "Error",
			path:    "/project",
			expectFunc: func(t *testing.T, response map[string]interface{}) {
				matches, ok := response["matches"].([]interface{})
				require.True(t, ok)
				assert.GreaterOrEqual(t, len(matches), 3)

				match := matches[0].(map[string]interface{})
				assert.Contains(t, match, "file")
				assert.Contains(t, match, "line")
				assert.Contains(t, match, "content")
				assert.Contains(t, match, "context")
			},
		},
		{
			name:        "search in Go files only",
			pattern:     "log\\.",
			path:        "/project",
			filePattern: "*.go",
			expectFunc: func(t *testing.T, response map[string]interface{}) {
				matches, ok := response["matches"].([]interface{})
				require.True(t, ok)

				for _, match := range matches {
					m := match.(map[string]interface{})
					assert.Contains(t, m["file"].(string), ".go")
				}
				assert.GreaterOrEqual(t, len(matches), 2)
			},
		},
		{
			name:    "regex pattern search",
			pattern: "console\\.(log|error)",
			path:    "/project",
			expectFunc: func(t *testing.T, response map[string]interface{}) {
				matches, ok := response["matches"].([]interface{})
				require.True(t, ok)
				assert.GreaterOrEqual(t, len(matches), 2)
			},
		},
		{
			name:    "invalid regex falls back to string search",
			pattern: "[invalid regex",
			path:    "/project",
			expectFunc: func(t *testing.T, response map[string]interface{}) {
				matches, ok := response["matches"].([]interface{})
				require.True(t, ok)
				assert.Len(t, matches, 0)
			},
		},
		{
			name:    "search in specific subdirectory",
			pattern: "console",
			path:    "/project/frontend",
			expectFunc: func(t *testing.T, response map[string]interface{}) {
				matches, ok := response["matches"].([]interface{})
				require.True(t, ok)
				assert.GreaterOrEqual(t, len(matches), 2)

				for _, match := range matches {
					m := match.(map[string]interface{})
					assert.Contains(t, m["file"].(string), "/frontend/")
				}
			},
		},
		{
			name:    "no matches found",
			pattern: "nonexistent_pattern_xyz",
			path:    "/project",
			expectFunc: func(t *testing.T, response map[string]interface{}) {
				matches, ok := response["matches"].([]interface{})
				require.True(t, ok, "matches should be an array")
				assert.Len(t, matches, 0)
				assert.Equal(t, float64(0), response["count"])
			},
		},
		{
			name:      "unsafe path",
			pattern:   "test",
			path:      "/etc",
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := map[string]interface{}{
				"pattern": tt.pattern,
				"path":    tt.path,
			}
			if tt.filePattern != "" {
				params["file_pattern"] = tt.filePattern
			}

			resp := execute(t, fs, params)

			if tt.expectErr {
				assert.True(t, resp.IsError, "expected error response")
				return
			}

			assert.False(t, resp.IsError, "expected successful response")

			var response map[string]interface{}
			require.NoError(t, json.Unmarshal(resp.Content, &response))

			assert.Equal(t, tt.pattern, response["pattern"])
			assert.Equal(t, tt.path, response["path"])
			assert.Contains(t, response, "matches")
			assert.Contains(t, response, "count")

			if tt.expectFunc != nil {
				tt.expectFunc(t, response)
			}
		})
	}
}

func TestSearchFilesContext(t *testing.T) {
	fs := afero.NewMemMapFs()

	content := `line 1 before
line 2 before
target line with pattern
line 4 after
line 5 after`
	require.NoError(t, afero.WriteFile(fs, "/test.txt", []byte(content), 0644))

	resp := execute(t, fs, map[string]interface{}{
		"pattern": "target",
		"path":    "/",
	})
	assert.False(t, resp.IsError)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Content, &response))

	matches := response["matches"].([]interface{})
	require.Len(t, matches, 1)

	match := matches[0].(map[string]interface{})
	assert.Equal(t, "target line with pattern", match["content"])
	assert.Equal(t, 3, int(match["line"].(float64)))

	context := match["context"].([]interface{})
	assert.Len(t, context, 5) // 2 before + target + 2 after
}

func TestSearchFilesBinarySkip(t *testing.T) {
	fs := afero.NewMemMapFs()

	require.NoError(t, afero.WriteFile(fs, "/binary.bin", []byte{0x00, 0x01, 0x02, 0x03, 0x04}, 0644))
	require.NoError(t, afero.WriteFile(fs, "/text.txt", []byte("This is a text file with target pattern"), 0644))

	resp := execute(t, fs, map[string]interface{}{
		"pattern": "target",
		"path":    "/",
	})
	assert.False(t, resp.IsError)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Content, &response))

	matches := response["matches"].([]interface{})
	require.Len(t, matches, 1)

	match := matches[0].(map[string]interface{})
	assert.Contains(t, match["file"].(string), "text.txt")
}

func TestSearchFilesEmptyPathDefaults(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/current.txt", []byte("target pattern"), 0644))

	resp := execute(t, fs, map[string]interface{}{
		"pattern": "target",
	})
	assert.False(t, resp.IsError)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Content, &response))
	assert.Equal(t, ".", response["path"])
}
