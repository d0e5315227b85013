// Package toolregistry implements the tool registry: the persisted document
// of known tools, their schemas, categories, dependencies, and whitelists,
// layered with an in-memory session-override shadow for ephemeral toggles.
package toolregistry

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/mattwalker75/llf-control-plane/pkg/models"
)

// GlobalConfig holds registry-wide defaults, such as the shared
// requires_approval policy applied when a tool does not set its own.
type GlobalConfig struct {
	RequiresApprovalDefault bool `json:"requires_approval_default,omitempty"`
}

// document is the on-disk shape of the tool registry file.
type document struct {
	Tools        []models.Tool `json:"tools"`
	GlobalConfig GlobalConfig  `json:"global_config"`
}

// overrideState is a session-local shadow over a tool's persisted Enabled
// field. It is never written to disk: per spec §9, session-only tool
// toggles exist purely in memory.
type overrideState struct {
	enabled models.ToolEnabled
}

// Registry is the thread-safe, file-backed tool registry.
type Registry struct {
	mu        sync.RWMutex
	path      string
	tools     map[string]models.Tool
	overrides map[string]overrideState
}

// Load reads the tool registry document at path. A missing file yields an
// empty registry, matching the config store's first-run convention.
func Load(path string) (*Registry, error) {
	r := &Registry{
		path:      path,
		tools:     make(map[string]models.Tool),
		overrides: make(map[string]overrideState),
	}

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		var doc document
		if decErr := json.Unmarshal(raw, &doc); decErr != nil {
			return nil, fmt.Errorf("toolregistry: parse %s: %w", path, decErr)
		}
		for _, t := range doc.Tools {
			if issues := validateTool(t); len(issues) > 0 {
				return nil, fmt.Errorf("toolregistry: tool %q: %s", t.Name, strings.Join(issues, "; "))
			}
			r.tools[t.Name] = t
		}
	case os.IsNotExist(err):
		// first run: empty registry
	default:
		return nil, fmt.Errorf("toolregistry: read %s: %w", path, err)
	}

	return r, nil
}

// Save persists the registry document to its backing file.
func (r *Registry) Save() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.saveLocked()
}

func (r *Registry) saveLocked() error {
	doc := document{Tools: r.sortedToolsLocked()}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("toolregistry: encode: %w", err)
	}
	if err := os.WriteFile(r.path, raw, 0o644); err != nil {
		return fmt.Errorf("toolregistry: write %s: %w", r.path, err)
	}
	return nil
}

func (r *Registry) sortedToolsLocked() []models.Tool {
	out := make([]models.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

var toolNameOK = func(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '_':
		default:
			return false
		}
	}
	return true
}

func validateTool(t models.Tool) []string {
	var issues []string
	if !toolNameOK(t.Name) {
		issues = append(issues, fmt.Sprintf("name %q must match [a-z0-9_]+", t.Name))
	}
	switch t.Kind {
	case models.LLMInvokable, models.PreProcessor, models.PostProcessor:
	default:
		issues = append(issues, fmt.Sprintf("unknown kind %q", t.Kind))
	}
	return issues
}

// List returns a snapshot of every registered tool, with any active
// session overrides applied to the Enabled field.
func (r *Registry) List() []models.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := r.sortedToolsLocked()
	for i := range out {
		if ov, ok := r.overrides[out[i].Name]; ok {
			out[i].Enabled = ov.enabled
		}
	}
	return out
}

// ListByKind filters List by ToolKind.
func (r *Registry) ListByKind(kind models.ToolKind) []models.Tool {
	all := r.List()
	out := make([]models.Tool, 0, len(all))
	for _, t := range all {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}

// Get returns a single tool by name, with session overrides applied.
func (r *Registry) Get(name string) (models.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return models.Tool{}, false
	}
	if ov, overridden := r.overrides[name]; overridden {
		t.Enabled = ov.enabled
	}
	return t, true
}

// IsEnabled reports whether a tool should be offered to the model right
// now — Auto is treated as enabled; a tool must exist to be enabled.
func (r *Registry) IsEnabled(name string) bool {
	t, ok := r.Get(name)
	if !ok {
		return false
	}
	return t.Enabled == models.EnabledOn || t.Enabled == models.EnabledAuto
}

// Enable persistently sets a tool's Enabled field to On and clears any
// session override for it.
func (r *Registry) Enable(name string) error { return r.setPersistent(name, models.EnabledOn) }

// Disable persistently sets a tool's Enabled field to Off.
func (r *Registry) Disable(name string) error { return r.setPersistent(name, models.EnabledOff) }

// SetAuto persistently sets a tool's Enabled field to Auto.
func (r *Registry) SetAuto(name string) error { return r.setPersistent(name, models.EnabledAuto) }

func (r *Registry) setPersistent(name string, enabled models.ToolEnabled) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tools[name]
	if !ok {
		return fmt.Errorf("toolregistry: tool not found: %s", name)
	}
	t.Enabled = enabled
	r.tools[name] = t
	delete(r.overrides, name)
	return r.saveLocked()
}

// SetSessionOverride layers an ephemeral, non-persisted enablement over a
// tool for the lifetime of the process (or until cleared).
func (r *Registry) SetSessionOverride(name string, enabled models.ToolEnabled) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[name]; !ok {
		return fmt.Errorf("toolregistry: tool not found: %s", name)
	}
	r.overrides[name] = overrideState{enabled: enabled}
	return nil
}

// ClearSessionOverride removes any ephemeral override for a tool, reverting
// to its persisted Enabled value.
func (r *Registry) ClearSessionOverride(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.overrides, name)
}

// Import replaces a tool's registration with t, persisting the result.
func (r *Registry) Import(t models.Tool) error {
	if issues := validateTool(t); len(issues) > 0 {
		return fmt.Errorf("toolregistry: import %s: %s", t.Name, strings.Join(issues, "; "))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name] = t
	return r.saveLocked()
}

// Export removes a tool's registry entry, leaving its on-disk files intact
// for a later re-Import, and returns the record that was removed so the
// caller can persist it wherever it needs to go.
func (r *Registry) Export(name string) (models.Tool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tools[name]
	if !ok {
		return models.Tool{}, fmt.Errorf("toolregistry: tool not found: %s", name)
	}
	delete(r.tools, name)
	if err := r.saveLocked(); err != nil {
		return models.Tool{}, err
	}
	return t, nil
}

// WhitelistAdd appends pattern to a tool's whitelist, persisting the change.
func (r *Registry) WhitelistAdd(name, pattern string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tools[name]
	if !ok {
		return fmt.Errorf("toolregistry: tool not found: %s", name)
	}
	for _, existing := range t.Whitelist {
		if existing == pattern {
			return nil
		}
	}
	t.Whitelist = append(t.Whitelist, pattern)
	r.tools[name] = t
	return r.saveLocked()
}

// WhitelistRemove removes pattern from a tool's whitelist, persisting the change.
func (r *Registry) WhitelistRemove(name, pattern string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tools[name]
	if !ok {
		return fmt.Errorf("toolregistry: tool not found: %s", name)
	}
	out := t.Whitelist[:0]
	for _, existing := range t.Whitelist {
		if existing != pattern {
			out = append(out, existing)
		}
	}
	t.Whitelist = out
	r.tools[name] = t
	return r.saveLocked()
}

// WhitelistList returns a tool's current whitelist patterns.
func (r *Registry) WhitelistList(name string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("toolregistry: tool not found: %s", name)
	}
	out := make([]string, len(t.Whitelist))
	copy(out, t.Whitelist)
	return out, nil
}

// MatchesPattern reports whether target satisfies pattern, supporting exact
// match, a trailing "*" prefix match, and a leading "*" suffix match — the
// same three wildcard shapes the dispatcher's whitelist check consumes.
func MatchesPattern(pattern, target string) bool {
	switch {
	case pattern == target:
		return true
	case strings.HasSuffix(pattern, "*") && strings.HasPrefix(target, strings.TrimSuffix(pattern, "*")):
		return true
	case strings.HasPrefix(pattern, "*") && strings.HasSuffix(target, strings.TrimPrefix(pattern, "*")):
		return true
	default:
		return false
	}
}
