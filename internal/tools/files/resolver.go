package files

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Resolver anchors a file-access tool's argument paths to a workspace root
// before the dispatcher's whitelist check (internal/dispatch) ever sees
// them, so "path escapes workspace" is caught here rather than leaking a
// traversal into the whitelist matcher.
type Resolver struct {
	Root string
}

// Resolve turns path (absolute or workspace-relative) into a cleaned
// absolute path that is provably inside Root, or fails if it isn't.
func (r Resolver) Resolve(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is required")
	}

	root := strings.TrimSpace(r.Root)
	if root == "" {
		root = "."
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve workspace root: %w", err)
	}

	target := trimmed
	if !filepath.IsAbs(target) {
		target = filepath.Join(rootAbs, target)
	}
	targetAbs, err := filepath.Abs(filepath.Clean(target))
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}

	rel, err := filepath.Rel(rootAbs, targetAbs)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("path %q escapes workspace root %q", trimmed, rootAbs)
	}
	return targetAbs, nil
}
