package tool_patchfile

import (
	"context"
	"strings"
	"testing"

	"github.com/skald-dev/skald/src/agent"
	"github.com/spf13/afero"
)

func applyPatch(t *testing.T, fs afero.Fs, input PatchInput) (PatchOutput, error) {
	t.Helper()
	return makePatchHandler(fs)(context.Background(), input)
}

func TestPatchToolIntegration(t *testing.T) {
	toolbox := agent.NewToolbox[agent.Tool]()

	patchTool, err := Tool()
	if err != nil {
		t.Fatalf("Failed to create patch tool: %v", err)
	}
	if err := toolbox.RegisterTool(patchTool); err != nil {
		t.Fatalf("Failed to register patch tool: %v", err)
	}

	registeredTool, exists := toolbox.GetTool(Name)
	if !exists {
		t.Fatal("Patch tool not found in toolbox")
	}
	if registeredTool.GetName() != Name {
		t.Errorf("Expected tool name %s, got %s", Name, registeredTool.GetName())
	}
}

func TestPatchAppliesSingleHunk(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "test.txt", []byte("old\n"), 0644); err != nil {
		t.Fatal(err)
	}

	output, err := applyPatch(t, fs, PatchInput{
		Patch: "--- a/test.txt\n+++ b/test.txt\n@@ -1 +1 @@\n-old\n+new\n",
	})
	if err != nil {
		t.Fatalf("patch failed: %v", err)
	}
	if !output.Success {
		t.Fatalf("Expected success, got message: %s", output.Message)
	}

	content, err := afero.ReadFile(fs, "test.txt")
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "new\n" {
		t.Errorf("Expected patched content 'new\\n', got %q", string(content))
	}
}

func TestPatchAppliesMultipleHunks(t *testing.T) {
	fs := afero.NewMemMapFs()
	original := "one\ntwo\nthree\nfour\nfive\nsix\nseven\neight\nnine\nten\n"
	if err := afero.WriteFile(fs, "list.txt", []byte(original), 0644); err != nil {
		t.Fatal(err)
	}

	patch := strings.Join([]string{
		"--- a/list.txt",
		"+++ b/list.txt",
		"@@ -1,3 +1,3 @@",
		" one",
		"-two",
		"+TWO",
		" three",
		"@@ -8,3 +8,3 @@",
		" eight",
		"-nine",
		"+NINE",
		" ten",
		"",
	}, "\n")

	output, err := applyPatch(t, fs, PatchInput{Patch: patch})
	if err != nil {
		t.Fatalf("patch failed: %v (output: %s)", err, output.Output)
	}
	if !output.Success {
		t.Fatalf("Expected success, got: %s", output.Message)
	}

	content, _ := afero.ReadFile(fs, "list.txt")
	want := "one\nTWO\nthree\nfour\nfive\nsix\nseven\neight\nNINE\nten\n"
	if string(content) != want {
		t.Errorf("Unexpected content:\n%s", string(content))
	}
	if !strings.Contains(output.Output, "hunk #1 applied") || !strings.Contains(output.Output, "hunk #2 applied") {
		t.Errorf("Expected per-hunk details, got: %s", output.Output)
	}
}

func TestPatchFindsDriftedHunk(t *testing.T) {
	fs := afero.NewMemMapFs()
	// Three lines were inserted above the region the patch was made against,
	// so the stated line numbers are stale.
	content := "header a\nheader b\nheader c\nalpha\nbeta\ngamma\n"
	if err := afero.WriteFile(fs, "drift.txt", []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	patch := "--- a/drift.txt\n+++ b/drift.txt\n@@ -1,3 +1,3 @@\n alpha\n-beta\n+BETA\n gamma\n"

	output, err := applyPatch(t, fs, PatchInput{Patch: patch})
	if err != nil {
		t.Fatalf("patch failed: %v", err)
	}
	if !output.Success {
		t.Fatalf("Expected success, got: %s", output.Message)
	}

	got, _ := afero.ReadFile(fs, "drift.txt")
	if !strings.Contains(string(got), "BETA") {
		t.Errorf("Expected BETA in content, got:\n%s", string(got))
	}
	if !strings.Contains(string(got), "header a") {
		t.Errorf("Headers should be untouched, got:\n%s", string(got))
	}
}

func TestPatchFallsBackToFuzzyMatch(t *testing.T) {
	fs := afero.NewMemMapFs()
	// A context line changed since the patch was produced ("alpha!" instead
	// of "alpha"), so no exact block match exists anywhere in the file.
	content := "intro\nalpha!\nbeta\ngamma\noutro\n"
	if err := afero.WriteFile(fs, "fuzzy.txt", []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	patch := "--- a/fuzzy.txt\n+++ b/fuzzy.txt\n@@ -2,3 +2,3 @@\n alpha\n-beta\n+BETA\n gamma\n"

	output, err := applyPatch(t, fs, PatchInput{Patch: patch})
	if err != nil {
		t.Fatalf("patch failed: %v (output: %s)", err, output.Output)
	}
	if !output.Success {
		t.Fatalf("Expected success, got: %s", output.Message)
	}
	if !strings.Contains(output.Output, "fuzz") {
		t.Errorf("Expected fuzzy application detail, got: %s", output.Output)
	}

	got, _ := afero.ReadFile(fs, "fuzzy.txt")
	if !strings.Contains(string(got), "BETA") {
		t.Errorf("Expected BETA in content, got:\n%s", string(got))
	}
	if strings.Contains(string(got), "\nbeta\n") {
		t.Errorf("Old line should be gone, got:\n%s", string(got))
	}
}

func TestPatchCreatesNewFile(t *testing.T) {
	fs := afero.NewMemMapFs()

	patch := "--- /dev/null\n+++ b/created.txt\n@@ -0,0 +1,2 @@\n+hello\n+world\n"

	output, err := applyPatch(t, fs, PatchInput{Patch: patch})
	if err != nil {
		t.Fatalf("patch failed: %v", err)
	}
	if !output.Success {
		t.Fatalf("Expected success, got: %s", output.Message)
	}

	content, err := afero.ReadFile(fs, "created.txt")
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "hello\nworld\n" {
		t.Errorf("Unexpected content: %q", string(content))
	}
}

func TestPatchExplicitFilePathOverridesHeader(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "actual.txt", []byte("old\n"), 0644); err != nil {
		t.Fatal(err)
	}

	output, err := applyPatch(t, fs, PatchInput{
		Patch:    "--- a/other.txt\n+++ b/other.txt\n@@ -1 +1 @@\n-old\n+new\n",
		FilePath: "actual.txt",
	})
	if err != nil {
		t.Fatalf("patch failed: %v", err)
	}
	if output.FilePath != "actual.txt" {
		t.Errorf("Expected file_path actual.txt, got %s", output.FilePath)
	}

	content, _ := afero.ReadFile(fs, "actual.txt")
	if string(content) != "new\n" {
		t.Errorf("Unexpected content: %q", string(content))
	}
}

func TestPatchRejectsNonMatchingHunk(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "mismatch.txt", []byte("completely\ndifferent\ncontent\n"), 0644); err != nil {
		t.Fatal(err)
	}

	patch := "--- a/mismatch.txt\n+++ b/mismatch.txt\n@@ -1,3 +1,3 @@\n the quick\n-brown fox\n+red fox\n jumps over\n"

	output, err := applyPatch(t, fs, PatchInput{Patch: patch})
	if err == nil {
		t.Fatal("Expected error for non-matching hunk")
	}
	if output.Success {
		t.Error("Expected Success to be false")
	}
	if !strings.Contains(output.Output, "FAILED") {
		t.Errorf("Expected FAILED detail, got: %s", output.Output)
	}

	// The file must be left untouched on failure.
	content, _ := afero.ReadFile(fs, "mismatch.txt")
	if string(content) != "completely\ndifferent\ncontent\n" {
		t.Errorf("File was modified despite failure: %q", string(content))
	}
}

func TestPatchToolConversionToChatTool(t *testing.T) {
	patchTool, err := Tool()
	if err != nil {
		t.Fatalf("Failed to create patch tool: %v", err)
	}

	chatTool := agent.ToChatTool(patchTool)
	if chatTool == nil {
		t.Fatal("ChatTool conversion returned nil")
	}
	if chatTool.Type != "function" {
		t.Errorf("Expected ChatTool type 'function', got %s", chatTool.Type)
	}
	if chatTool.Function.Name != Name {
		t.Errorf("Expected ChatTool function name %s, got %s", Name, chatTool.Function.Name)
	}
	if chatTool.Function.Description == "" {
		t.Error("ChatTool should have a description")
	}
	if chatTool.Function.Parameters == nil {
		t.Error("ChatTool should have parameters schema")
	}
}
