package files

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mattwalker75/llf-control-plane/internal/agent"
)

// EditTool is the "edit" LLMInvokable tool: a sequence of literal find/replace
// patches applied to one file. Classified as mutating by the chat pipeline's
// isMutating, same as write and apply_patch.
type EditTool struct {
	resolver Resolver
}

// patchSpec is one find/replace instruction within an edit call.
type patchSpec struct {
	Find    string `json:"old_text"`
	Replace string `json:"new_text"`
	All     bool   `json:"replace_all"`
}

// NewEditTool builds an edit tool confined to cfg.Workspace.
func NewEditTool(cfg Config) *EditTool {
	return &EditTool{resolver: Resolver{Root: cfg.Workspace}}
}

func (t *EditTool) Name() string { return "edit" }

func (t *EditTool) Description() string {
	return "Apply one or more find/replace edits to a file in the workspace."
}

// Schema returns the JSON schema for the tool parameters.
func (t *EditTool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Path to edit (relative to workspace).",
			},
			"edits": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"old_text": map[string]interface{}{
							"type":        "string",
							"description": "Text to replace.",
						},
						"new_text": map[string]interface{}{
							"type":        "string",
							"description": "Replacement text.",
						},
						"replace_all": map[string]interface{}{
							"type":        "boolean",
							"description": "Replace all occurrences (default: false).",
						},
					},
					"required": []string{"old_text", "new_text"},
				},
			},
		},
		"required": []string{"path", "edits"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

// applyPatch runs one patch against content and reports how many
// substitutions it made.
func applyPatch(content string, p patchSpec) (string, int, error) {
	if p.Find == "" {
		return content, 0, fmt.Errorf("old_text is required")
	}
	if !strings.Contains(content, p.Find) {
		return content, 0, fmt.Errorf("old_text not found")
	}
	if p.All {
		n := strings.Count(content, p.Find)
		return strings.ReplaceAll(content, p.Find, p.Replace), n, nil
	}
	return strings.Replace(content, p.Find, p.Replace, 1), 1, nil
}

// Execute loads the target file, applies every patch in order, and writes
// the result back only if every patch in the batch succeeded.
func (t *EditTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	_ = ctx
	var input struct {
		Path  string      `json:"path"`
		Edits []patchSpec `json:"edits"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.Path) == "" {
		return toolError("path is required"), nil
	}
	if len(input.Edits) == 0 {
		return toolError("edits are required"), nil
	}

	resolved, err := t.resolver.Resolve(input.Path)
	if err != nil {
		return toolError(err.Error()), nil
	}

	raw, err := os.ReadFile(resolved)
	if err != nil {
		return toolError(fmt.Sprintf("read file: %v", err)), nil
	}

	content := string(raw)
	total := 0
	for _, p := range input.Edits {
		updated, n, err := applyPatch(content, p)
		if err != nil {
			return toolError(err.Error()), nil
		}
		content = updated
		total += n
	}

	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return toolError(fmt.Sprintf("write file: %v", err)), nil
	}

	payload, err := json.MarshalIndent(map[string]interface{}{
		"path":         input.Path,
		"replacements": total,
	}, "", "  ")
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return &agent.ToolResult{Content: string(payload)}, nil
}
