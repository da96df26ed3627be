package tool_grepfiles

import (
	"context"
	"encoding/json"
	"strings"
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

func TestGrepFilesTool(t *testing.T) {
	fs := afero.NewMemMapFs()

	testFiles := map[string]string{
		"/test/file1.go": `package main

import "fmt"

func main() {
	fmt.Println("Hello, World!")
}`,
		"/test/file2.js": `function hello() {
    console.log("Hello from JavaScript");
}

function goodbye() {
    console.log("Goodbye from JavaScript");
}`,
		"/test/file3.py": `def greet(name):
    print(f"Hello, {name}!")

def farewell(name):
    print(f"Goodbye, {name}!")`,
		"/test/binary.exe": string([]byte{0x00, 0x01, 0x02, 0x03}),
		"/test/empty.txt":  "",
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
			name:    "find function declarations",
			pattern: "^func ",
			path:    "/test",
			expectFunc: func(t *testing.T, response map[string]interface{}) {
				matches := response["matches"].([]interface{})
				require.Len(t, matches, 1)

				match := matches[0].(map[string]interface{})
				assert.Contains(t, match["file"], "file1.go")
				assert.Contains(t, match["content"], "func main()")
			},
		},
		{
			name:    "find console.log statements",
			pattern: "console\\.log",
			path:    "/test",
			expectFunc: func(t *testing.T, response map[string]interface{}) {
				matches := response["matches"].([]interface{})
				assert.Len(t, matches, 2)
			},
		},
		{
			name:    "case insensitive by default",
			pattern: "hello",
			path:    "/test",
			expectFunc: func(t *testing.T, response map[string]interface{}) {
				matches := response["matches"].([]interface{})
				assert.GreaterOrEqual(t, len(matches), 3)
			},
		},
		{
			name:    "no matches",
			pattern: "nonexistent",
			path:    "/test",
			expectFunc: func(t *testing.T, response map[string]interface{}) {
				matches, ok := response["matches"].([]interface{})
				require.True(t, ok, "matches should be an array")
				assert.Len(t, matches, 0)
			},
		},
		{
			name:        "file pattern filter",
			pattern:     "function",
			path:        "/test",
			filePattern: "*.js",
			expectFunc: func(t *testing.T, response map[string]interface{}) {
				matches := response["matches"].([]interface{})
				assert.GreaterOrEqual(t, len(matches), 2)
				for _, m := range matches {
					assert.True(t, strings.HasSuffix(m.(map[string]interface{})["file"].(string), ".js"))
				}
			},
		},
		{
			name:      "unsafe path",
			pattern:   "test",
			path:      "/etc",
			expectErr: true,
		},
		{
			name:      "invalid regex",
			pattern:   "[invalid",
			path:      "/test",
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
			assert.Contains(t, response, "total_matches")

			if tt.expectFunc != nil {
				tt.expectFunc(t, response)
			}
		})
	}
}

func TestGrepFilesContextLines(t *testing.T) {
	fs := afero.NewMemMapFs()

	content := `line1
line2
target line
line4
line5`
	require.NoError(t, afero.WriteFile(fs, "/test.txt", []byte(content), 0644))

	resp := execute(t, fs, map[string]interface{}{
		"pattern":       "target",
		"path":          "/",
		"context_lines": 2,
	})
	assert.False(t, resp.IsError)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Content, &response))

	matches := response["matches"].([]interface{})
	require.Len(t, matches, 1)

	match := matches[0].(map[string]interface{})
	assert.Equal(t, "target line", match["content"])
	assert.Equal(t, 3, int(match["line"].(float64)))

	context := match["context"].([]interface{})
	assert.Len(t, context, 5) // 2 lines before + target + 2 lines after
}

func TestGrepFilesMaxResults(t *testing.T) {
	fs := afero.NewMemMapFs()

	var sb strings.Builder
	for i := 0; i < 200; i++ {
		sb.WriteString("target line\n")
	}
	require.NoError(t, afero.WriteFile(fs, "/many_matches.txt", []byte(sb.String()), 0644))

	resp := execute(t, fs, map[string]interface{}{
		"pattern":     "target",
		"path":        "/",
		"max_results": 50,
	})
	assert.False(t, resp.IsError)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Content, &response))

	matches := response["matches"].([]interface{})
	assert.Len(t, matches, 50)

	truncated := response["truncated"].(bool)
	assert.True(t, truncated)
}

func TestGrepFilesReportsMatchText(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/code.go", []byte("var userName = \"anna\"\n"), 0644))

	resp := execute(t, fs, map[string]interface{}{
		"pattern":        "user\\w+",
		"path":           "/",
		"case_sensitive": true,
	})
	assert.False(t, resp.IsError)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Content, &response))

	matches := response["matches"].([]interface{})
	require.Len(t, matches, 1)
	assert.Equal(t, "userName", matches[0].(map[string]interface{})["match"])
}
