package tool_patchfile

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/skald-dev/skald/src/agent"
	"github.com/skald-dev/skald/src/skaldagent/toolsutil"
	"github.com/spf13/afero"
)

// Tool name constant
const Name = "patch"

const patchPrompt = `Applies a unified diff to a file.

Usage:
- Provide the patch in unified diff format: optional "--- a/path" and "+++ b/path" headers followed by one or more "@@ -start,count +start,count @@" hunks.
- If file_path is omitted, the target is taken from the "+++ b/path" header.
- Hunks are applied in order. When a hunk's context no longer matches the exact line position, a fuzzy match is attempted before the hunk is rejected.
- A patch whose old file is /dev/null creates the target file.
- Prefer edit_file for single small changes; use patch for multi-hunk changes produced by diff tools.`

// PatchInput represents the parameters for the patch tool
type PatchInput struct {
	Patch    string `json:"patch" required:"true" description:"The patch content in unified diff format"`
	FilePath string `json:"file_path,omitempty" description:"Target file; defaults to the path in the patch header"`
}

// PatchOutput represents the response from the patch tool
type PatchOutput struct {
	Success  bool   `json:"success" description:"Whether the patch applied cleanly"`
	Message  string `json:"message" description:"Human-readable result summary"`
	FilePath string `json:"file_path,omitempty" description:"The file the patch was applied to"`
	Output   string `json:"output,omitempty" description:"Per-hunk application details"`
}

// Tool returns the patch tool definition using GenericTool
func Tool() (agent.Tool, error) {
	return ToolWithFs(afero.NewOsFs())
}

// ToolWithFs returns the patch tool bound to a specific filesystem.
func ToolWithFs(fs afero.Fs) (agent.Tool, error) {
	return agent.NewGenericTool(Name, patchPrompt, makePatchHandler(fs))
}

// patchHandler applies patches against the real filesystem. Kept as a
// package-level function so it can be exercised directly.
var patchHandler = makePatchHandler(afero.NewOsFs())

// hunk is one @@ block of a unified diff.
type hunk struct {
	oldStart int
	oldLines []string
	newLines []string
}

func makePatchHandler(fs afero.Fs) func(ctx context.Context, input PatchInput) (PatchOutput, error) {
	return func(ctx context.Context, input PatchInput) (PatchOutput, error) {
		select {
		case <-ctx.Done():
			return PatchOutput{Success: false, Message: "operation cancelled"}, fmt.Errorf("operation cancelled")
		default:
		}

		if strings.TrimSpace(input.Patch) == "" {
			return PatchOutput{Success: false, Message: "patch content is empty"}, fmt.Errorf("patch content is empty")
		}

		target, createNew, hunks, err := parseUnifiedDiff(input.Patch)
		if err != nil {
			return PatchOutput{Success: false, Message: err.Error()}, err
		}
		if input.FilePath != "" {
			target = input.FilePath
		}
		if target == "" {
			err := fmt.Errorf("no target file: provide file_path or a +++ header in the patch")
			return PatchOutput{Success: false, Message: err.Error(), FilePath: target}, err
		}

		if !toolsutil.IsPathSafe(target) {
			err := fmt.Errorf("unsafe path: %s", target)
			return PatchOutput{Success: false, Message: err.Error(), FilePath: target}, err
		}

		toolsutil.GetLogger().Info("applying patch", "path", target, "hunks", len(hunks))

		var content string
		if createNew {
			if exists, _ := afero.Exists(fs, target); exists {
				err := fmt.Errorf("patch creates %s but the file already exists", target)
				return PatchOutput{Success: false, Message: err.Error(), FilePath: target}, err
			}
		} else {
			raw, readErr := afero.ReadFile(fs, target)
			if readErr != nil {
				err := fmt.Errorf("failed to read target file: %v", readErr)
				return PatchOutput{Success: false, Message: err.Error(), FilePath: target}, err
			}
			content = string(raw)
		}

		updated, details, applyErr := applyHunks(content, hunks)
		if applyErr != nil {
			return PatchOutput{
				Success:  false,
				Message:  applyErr.Error(),
				FilePath: target,
				Output:   strings.Join(details, "\n"),
			}, applyErr
		}

		if err := afero.WriteFile(fs, target, []byte(updated), 0644); err != nil {
			werr := fmt.Errorf("failed to write patched file: %v", err)
			return PatchOutput{Success: false, Message: werr.Error(), FilePath: target}, werr
		}

		toolsutil.GetLogger().Info("patch applied", "path", target, "hunks", len(hunks))

		return PatchOutput{
			Success:  true,
			Message:  fmt.Sprintf("Patch applied successfully (%d hunks)", len(hunks)),
			FilePath: target,
			Output:   strings.Join(details, "\n"),
		}, nil
	}
}

// parseUnifiedDiff extracts the target path and hunks from a unified diff.
// createNew is true when the old side is /dev/null.
func parseUnifiedDiff(patch string) (target string, createNew bool, hunks []hunk, err error) {
	lines := strings.Split(patch, "\n")

	var current *hunk
	flush := func() {
		if current != nil {
			hunks = append(hunks, *current)
			current = nil
		}
	}

	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "--- "):
			flush()
			if strings.TrimSpace(strings.TrimPrefix(line, "--- ")) == "/dev/null" {
				createNew = true
			}
		case strings.HasPrefix(line, "+++ "):
			path := strings.TrimSpace(strings.TrimPrefix(line, "+++ "))
			path = strings.TrimPrefix(path, "b/")
			if path != "/dev/null" && target == "" {
				target = path
			}
		case strings.HasPrefix(line, "@@"):
			flush()
			start, parseErr := parseHunkHeader(line)
			if parseErr != nil {
				return "", false, nil, parseErr
			}
			current = &hunk{oldStart: start}
		case current != nil && strings.HasPrefix(line, "+"):
			current.newLines = append(current.newLines, line[1:])
		case current != nil && strings.HasPrefix(line, "-"):
			current.oldLines = append(current.oldLines, line[1:])
		case current != nil && strings.HasPrefix(line, " "):
			current.oldLines = append(current.oldLines, line[1:])
			current.newLines = append(current.newLines, line[1:])
		case current != nil && line == "":
			// Blank context line with the leading space trimmed by transport.
			current.oldLines = append(current.oldLines, "")
			current.newLines = append(current.newLines, "")
		case current != nil && strings.HasPrefix(line, "\\"):
			// "\ No newline at end of file" markers are ignored.
		}
	}
	flush()

	if len(hunks) == 0 {
		return "", false, nil, fmt.Errorf("no hunks found in patch")
	}
	return target, createNew, hunks, nil
}

// parseHunkHeader reads the old-file start line from "@@ -l,c +l,c @@".
func parseHunkHeader(line string) (int, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 || !strings.HasPrefix(fields[1], "-") {
		return 0, fmt.Errorf("malformed hunk header: %s", line)
	}
	spec := strings.TrimPrefix(fields[1], "-")
	if idx := strings.Index(spec, ","); idx >= 0 {
		spec = spec[:idx]
	}
	start, err := strconv.Atoi(spec)
	if err != nil {
		return 0, fmt.Errorf("malformed hunk header: %s", line)
	}
	return start, nil
}

// applyHunks applies each hunk in order, preferring an exact line match near
// the stated position and falling back to a fuzzy diff-match-patch apply.
func applyHunks(content string, hunks []hunk) (string, []string, error) {
	// A trailing newline yields one empty trailing element; track it so the
	// output keeps the same shape.
	trailingNewline := strings.HasSuffix(content, "\n")
	lines := strings.Split(content, "\n")
	if trailingNewline {
		lines = lines[:len(lines)-1]
	}
	if content == "" {
		lines = nil
	}

	details := make([]string, 0, len(hunks))
	delta := 0

	for i, h := range hunks {
		expected := h.oldStart - 1 + delta
		if len(h.oldLines) == 0 {
			// A zero-count old range inserts after the stated line.
			expected = h.oldStart + delta
		}
		pos := findBlock(lines, h.oldLines, expected)
		if pos >= 0 {
			lines = spliceLines(lines, pos, len(h.oldLines), h.newLines)
			delta += len(h.newLines) - len(h.oldLines)
			details = append(details, fmt.Sprintf("hunk #%d applied at line %d", i+1, pos+1))
			continue
		}

		fuzzed, ok := fuzzyApply(strings.Join(lines, "\n"), h)
		if !ok {
			details = append(details, fmt.Sprintf("hunk #%d FAILED", i+1))
			return "", details, fmt.Errorf("hunk #%d does not apply", i+1)
		}
		before := len(lines)
		lines = strings.Split(fuzzed, "\n")
		delta += len(lines) - before
		details = append(details, fmt.Sprintf("hunk #%d applied with fuzz", i+1))
	}

	result := strings.Join(lines, "\n")
	if trailingNewline || content == "" {
		result += "\n"
	}
	return result, details, nil
}

// findBlock locates block in lines, trying the expected position first and
// then scanning outward.
func findBlock(lines, block []string, expected int) int {
	if len(block) == 0 {
		if expected < 0 {
			return 0
		}
		if expected > len(lines) {
			return len(lines)
		}
		return expected
	}

	matchAt := func(pos int) bool {
		if pos < 0 || pos+len(block) > len(lines) {
			return false
		}
		for i, b := range block {
			if lines[pos+i] != b {
				return false
			}
		}
		return true
	}

	if matchAt(expected) {
		return expected
	}
	for offset := 1; offset <= len(lines); offset++ {
		if matchAt(expected - offset) {
			return expected - offset
		}
		if matchAt(expected + offset) {
			return expected + offset
		}
	}
	return -1
}

func spliceLines(lines []string, pos, removeCount int, insert []string) []string {
	result := make([]string, 0, len(lines)-removeCount+len(insert))
	result = append(result, lines[:pos]...)
	result = append(result, insert...)
	result = append(result, lines[pos+removeCount:]...)
	return result
}

// fuzzyApply retries a hunk with diff-match-patch, which tolerates drifted
// context as long as enough of it still matches.
func fuzzyApply(content string, h hunk) (string, bool) {
	oldText := strings.Join(h.oldLines, "\n")
	newText := strings.Join(h.newLines, "\n")
	if oldText == "" {
		return "", false
	}

	dmp := diffmatchpatch.New()
	patches := dmp.PatchMake(oldText, newText)
	if len(patches) == 0 {
		return content, true
	}

	result, applied := dmp.PatchApply(patches, content)
	for _, ok := range applied {
		if !ok {
			return "", false
		}
	}
	return result, true
}
