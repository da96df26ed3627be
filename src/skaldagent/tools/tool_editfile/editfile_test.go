package tool_editfile

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/skald-dev/skald/src/aisdk"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runEdit(t *testing.T, fs afero.Fs, args map[string]any) *aisdk.ToolResponse {
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

func TestEditFileReplacesUniqueMatch(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/main.go", []byte("package main\n\nfunc run() {}\n"), 0644))

	response := runEdit(t, fs, map[string]any{
		"path":        "/main.go",
		"old_content": "func run() {}",
		"new_content": "func run() error { return nil }",
	})
	require.False(t, response.IsError, "unexpected error: %s", string(response.Content))

	var out EditFileOutput
	require.NoError(t, json.Unmarshal(response.Content, &out))
	assert.Equal(t, 1, out.Replacements)

	content, err := afero.ReadFile(fs, "/main.go")
	require.NoError(t, err)
	assert.Contains(t, string(content), "func run() error { return nil }")
}

func TestEditFileIncludesUnifiedDiff(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/notes.txt", []byte("alpha\nbeta\ngamma\n"), 0644))

	response := runEdit(t, fs, map[string]any{
		"path":        "/notes.txt",
		"old_content": "beta",
		"new_content": "BETA",
	})
	require.False(t, response.IsError)

	var out EditFileOutput
	require.NoError(t, json.Unmarshal(response.Content, &out))
	assert.Contains(t, out.Diff, "-beta")
	assert.Contains(t, out.Diff, "+BETA")
	assert.Contains(t, out.Diff, "a/notes.txt")
}

func TestEditFileRejectsAmbiguousMatch(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/dup.txt", []byte("x = 1\nx = 1\n"), 0644))

	response := runEdit(t, fs, map[string]any{
		"path":        "/dup.txt",
		"old_content": "x = 1",
		"new_content": "x = 2",
	})
	assert.True(t, response.IsError)
	assert.Contains(t, string(response.Content), "replace_all")
}

func TestEditFileReplaceAll(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/dup.txt", []byte("count\ncount\ncount\n"), 0644))

	response := runEdit(t, fs, map[string]any{
		"path":        "/dup.txt",
		"old_content": "count",
		"new_content": "total",
		"replace_all": true,
	})
	require.False(t, response.IsError)

	var out EditFileOutput
	require.NoError(t, json.Unmarshal(response.Content, &out))
	assert.Equal(t, 3, out.Replacements)

	content, err := afero.ReadFile(fs, "/dup.txt")
	require.NoError(t, err)
	assert.Equal(t, "total\ntotal\ntotal\n", string(content))
}

func TestEditFileMissingContent(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/a.txt", []byte("hello\n"), 0644))

	response := runEdit(t, fs, map[string]any{
		"path":        "/a.txt",
		"old_content": "goodbye",
		"new_content": "farewell",
	})
	assert.True(t, response.IsError)
	assert.Contains(t, string(response.Content), "not found")
}

func TestEditFileCreatesBackup(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/cfg.ini", []byte("debug=false\n"), 0644))

	response := runEdit(t, fs, map[string]any{
		"path":          "/cfg.ini",
		"old_content":   "debug=false",
		"new_content":   "debug=true",
		"create_backup": true,
	})
	require.False(t, response.IsError)

	var out EditFileOutput
	require.NoError(t, json.Unmarshal(response.Content, &out))
	assert.True(t, out.BackupCreated)

	matches, err := afero.Glob(fs, "/cfg.ini.backup.*")
	require.NoError(t, err)
	require.Len(t, matches, 1)

	backup, err := afero.ReadFile(fs, matches[0])
	require.NoError(t, err)
	assert.Equal(t, "debug=false\n", string(backup))
}
