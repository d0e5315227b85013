package files

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/mattwalker75/llf-control-plane/internal/agent"
)

// ApplyPatchTool is the "apply_patch" LLMInvokable tool: it takes a unified
// diff covering one or more files and applies every hunk transactionally
// per-file. Classified as mutating by the chat pipeline's isMutating.
type ApplyPatchTool struct {
	resolver Resolver
}

// NewApplyPatchTool builds an apply_patch tool confined to cfg.Workspace.
func NewApplyPatchTool(cfg Config) *ApplyPatchTool {
	return &ApplyPatchTool{resolver: Resolver{Root: cfg.Workspace}}
}

func (t *ApplyPatchTool) Name() string { return "apply_patch" }

func (t *ApplyPatchTool) Description() string {
	return "Apply a unified diff patch to one or more files in the workspace."
}

// Schema returns the JSON schema for tool parameters.
func (t *ApplyPatchTool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"patch": map[string]interface{}{
				"type":        "string",
				"description": "Unified diff patch (---/+++ headers required).",
			},
		},
		"required": []string{"patch"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

// fileDiff is one file's worth of hunks parsed out of a unified diff.
type fileDiff struct {
	Path  string
	Hunks []diffHunk
}

// diffHunk is a single @@ block: its old/new range plus the context/add/
// remove lines that follow it, in order.
type diffHunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Body     []string
}

type applyOutcome struct {
	Content string
	Added   int
	Removed int
}

var hunkRangeRe = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// Execute parses input.Patch into per-file diffs, applies each one to the
// resolved file on disk, and reports lines added/removed per file. Any
// single file failing to parse or apply aborts before any write for the
// patches that follow it in the batch.
func (t *ApplyPatchTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	_ = ctx
	var input struct {
		Patch string `json:"patch"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.Patch) == "" {
		return toolError("patch is required"), nil
	}

	diffs, err := splitUnifiedDiff(input.Patch)
	if err != nil {
		return toolError(err.Error()), nil
	}

	summaries := make([]map[string]interface{}, 0, len(diffs))
	for _, fd := range diffs {
		resolved, err := t.resolver.Resolve(fd.Path)
		if err != nil {
			return toolError(err.Error()), nil
		}
		before, err := os.ReadFile(resolved)
		if err != nil {
			return toolError(fmt.Sprintf("read file: %v", err)), nil
		}
		outcome, err := applyDiffToFile(string(before), fd)
		if err != nil {
			return toolError(fmt.Sprintf("apply patch: %v", err)), nil
		}
		if err := os.WriteFile(resolved, []byte(outcome.Content), 0o644); err != nil {
			return toolError(fmt.Sprintf("write file: %v", err)), nil
		}
		summaries = append(summaries, map[string]interface{}{
			"path":          fd.Path,
			"hunks":         len(fd.Hunks),
			"lines_added":   outcome.Added,
			"lines_removed": outcome.Removed,
		})
	}

	payload, err := json.MarshalIndent(map[string]interface{}{"applied": summaries}, "", "  ")
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return &agent.ToolResult{Content: string(payload)}, nil
}

// splitUnifiedDiff walks a multi-file unified diff line by line, grouping
// hunks under the file header (+++) that precedes them.
func splitUnifiedDiff(patch string) ([]fileDiff, error) {
	lines := strings.Split(patch, "\n")
	var diffs []fileDiff
	var file *fileDiff
	var hunk *diffHunk

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		switch {
		case strings.HasPrefix(line, "diff ") || strings.HasPrefix(line, "index "):
			continue
		case strings.HasPrefix(line, "--- "):
			if i+1 >= len(lines) || !strings.HasPrefix(lines[i+1], "+++ ") {
				return nil, fmt.Errorf("invalid patch: missing +++ header")
			}
			target := strings.TrimSpace(strings.TrimPrefix(lines[i+1], "+++ "))
			target = strings.TrimPrefix(strings.TrimPrefix(target, "b/"), "a/")
			diffs = append(diffs, fileDiff{Path: target})
			file = &diffs[len(diffs)-1]
			hunk = nil
			i++
		case strings.HasPrefix(line, "@@ "):
			if file == nil {
				return nil, fmt.Errorf("invalid patch: hunk without file header")
			}
			m := hunkRangeRe.FindStringSubmatch(line)
			if m == nil {
				return nil, fmt.Errorf("invalid patch: malformed hunk header")
			}
			file.Hunks = append(file.Hunks, diffHunk{
				OldStart: parseUint(m[1]),
				OldCount: parseUintOr(m[2], 1),
				NewStart: parseUint(m[3]),
				NewCount: parseUintOr(m[4], 1),
			})
			hunk = &file.Hunks[len(file.Hunks)-1]
		default:
			if hunk == nil || line == "" || line == "\\ No newline at end of file" {
				continue
			}
			marker := line[:1]
			if marker != " " && marker != "+" && marker != "-" {
				return nil, fmt.Errorf("invalid patch line: %s", line)
			}
			hunk.Body = append(hunk.Body, line)
		}
	}

	if len(diffs) == 0 {
		return nil, fmt.Errorf("invalid patch: no file headers found")
	}
	return diffs, nil
}

// applyDiffToFile replays every hunk's body lines against content's line
// array, verifying context/delete lines match before mutating.
func applyDiffToFile(content string, fd fileDiff) (applyOutcome, error) {
	endsInNewline := strings.HasSuffix(content, "\n")
	body := strings.TrimSuffix(content, "\n")
	var lines []string
	if body != "" {
		lines = strings.Split(body, "\n")
	}

	added, removed := 0, 0
	for _, h := range fd.Hunks {
		cursor := h.OldStart - 1
		if cursor < 0 {
			cursor = 0
		}
		for _, line := range h.Body {
			marker := line[:1]
			text := line[1:]
			switch marker {
			case " ":
				if cursor >= len(lines) || lines[cursor] != text {
					return applyOutcome{}, fmt.Errorf("context mismatch")
				}
				cursor++
			case "-":
				if cursor >= len(lines) || lines[cursor] != text {
					return applyOutcome{}, fmt.Errorf("delete mismatch")
				}
				lines = append(lines[:cursor], lines[cursor+1:]...)
				removed++
			case "+":
				lines = append(lines[:cursor], append([]string{text}, lines[cursor:]...)...)
				cursor++
				added++
			}
		}
	}

	result := strings.Join(lines, "\n")
	if endsInNewline {
		result += "\n"
	}
	return applyOutcome{Content: result, Added: added, Removed: removed}, nil
}

// parseUint parses a run of ASCII digits, returning 0 for anything else.
func parseUint(value string) int {
	out := 0
	for _, r := range value {
		if r < '0' || r > '9' {
			return 0
		}
		out = out*10 + int(r-'0')
	}
	return out
}

// parseUintOr parses value as parseUint does, but substitutes fallback
// when value is empty or parses to zero (the unified-diff convention for
// an omitted single-line count).
func parseUintOr(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	if n := parseUint(value); n != 0 {
		return n
	}
	return fallback
}
