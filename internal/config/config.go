// Package config implements the control plane's configuration store: the
// single JSON document describing every configured backend, the active
// endpoint selection, and tool-execution policy.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mattwalker75/llf-control-plane/pkg/models"
)

// EndpointConfig is the top-level "llm_endpoint" document field: it selects
// either a local backend by name, or describes a remote API directly.
type EndpointConfig struct {
	APIBaseURL        string                   `json:"api_base_url,omitempty"`
	APIKey            string                   `json:"api_key,omitempty"`
	ModelName         string                   `json:"model_name,omitempty"`
	DefaultLocalServer string                  `json:"default_local_server,omitempty"`
	ToolExecutionMode models.ToolExecutionMode `json:"tool_execution_mode,omitempty"`
}

// legacyDefaultLLM is the deprecated single-backend document shape this
// store still reads and transparently migrates on save.
type legacyDefaultLLM struct {
	ModelName string `json:"model_name,omitempty"`
	GGUFFile  string `json:"gguf_file,omitempty"`
}

// Document is the on-disk JSON shape of the configuration file.
type Document struct {
	LocalLLMServers []models.Backend `json:"local_llm_servers"`
	LLMEndpoint     EndpointConfig   `json:"llm_endpoint"`
	ModelDir        string           `json:"model_dir,omitempty"`
	CacheDir        string           `json:"cache_dir,omitempty"`

	// DefaultLLM is the legacy single-backend form. When present on load it
	// is promoted into a synthesized "default" backend; the new form is
	// written back on the next Save.
	DefaultLLM *legacyDefaultLLM `json:"default_llm,omitempty"`
}

// Config is the loaded, validated, in-memory configuration store. All
// mutating methods are safe for concurrent use.
type Config struct {
	mu            sync.RWMutex
	path          string
	doc           Document
	loadedModTime time.Time // zero if the file did not exist at load time
}

const (
	defaultModelDir            = "~/.cache/llf/models"
	defaultCacheDir            = "~/.cache/llf"
	defaultHealthcheckInterval = 10 // seconds
	legacyBackendName          = "default"
)

// Load reads, migrates, and validates the configuration document at path.
// A missing file is not an error: Load returns a Config populated with
// defaults, matching the teacher's "absent config is an empty config"
// convention for first-run ergonomics.
func Load(path string) (*Config, error) {
	doc := Document{
		LLMEndpoint: EndpointConfig{
			ToolExecutionMode: models.SinglePass,
		},
	}

	var loadedModTime time.Time
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if decErr := dec.Decode(&doc); decErr != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, decErr)
		}
		if info, statErr := os.Stat(path); statErr == nil {
			loadedModTime = info.ModTime()
		}
	case os.IsNotExist(err):
		// first run: defaults only
	default:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	applyDefaults(&doc)
	migrateLegacy(&doc)

	if issues := validateDocument(&doc); len(issues) > 0 {
		return nil, &ValidationError{Issues: issues}
	}

	return &Config{path: path, doc: doc, loadedModTime: loadedModTime}, nil
}

func applyDefaults(doc *Document) {
	if doc.ModelDir == "" {
		doc.ModelDir = defaultModelDir
	}
	if doc.CacheDir == "" {
		doc.CacheDir = defaultCacheDir
	}
	if doc.LLMEndpoint.ToolExecutionMode == "" {
		doc.LLMEndpoint.ToolExecutionMode = models.SinglePass
	}
	for i := range doc.LocalLLMServers {
		b := &doc.LocalLLMServers[i]
		if b.Kind == "" {
			b.Kind = models.BackendLocal
		}
		if b.Host == "" && b.Kind == models.BackendLocal {
			b.Host = "127.0.0.1"
		}
	}
}

// migrateLegacy promotes a legacy top-level "default_llm" object into a
// synthesized backend named "default", per original_source/llf/config.py's
// single-backend model. The legacy field is dropped on the next Save.
func migrateLegacy(doc *Document) {
	if doc.DefaultLLM == nil {
		return
	}
	for _, b := range doc.LocalLLMServers {
		if b.Name == legacyBackendName {
			doc.DefaultLLM = nil
			return
		}
	}
	doc.LocalLLMServers = append(doc.LocalLLMServers, models.Backend{
		Name:                legacyBackendName,
		Kind:                models.BackendLocal,
		Host:                "127.0.0.1",
		Port:                8000,
		BinaryPath:          "llama-server",
		WeightsFile:         doc.DefaultLLM.GGUFFile,
		HealthcheckInterval: defaultHealthcheckInterval,
		AutoStart:           true,
	})
	if doc.LLMEndpoint.DefaultLocalServer == "" {
		doc.LLMEndpoint.DefaultLocalServer = legacyBackendName
	}
	if doc.LLMEndpoint.ModelName == "" {
		doc.LLMEndpoint.ModelName = doc.DefaultLLM.ModelName
	}
	doc.DefaultLLM = nil
}

// Save atomically persists the configuration: write to a temp file in the
// same directory, fsync, rename over the original, and leave a timestamped
// backup of whatever was there before.
func (c *Config) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saveLocked()
}

func (c *Config) saveLocked() error {
	if !c.loadedModTime.IsZero() {
		if info, err := os.Stat(c.path); err == nil && !info.ModTime().Equal(c.loadedModTime) {
			return ErrConfigStale
		}
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("config: create dir %s: %w", dir, err)
	}

	if existing, err := os.ReadFile(c.path); err == nil {
		backupPath := fmt.Sprintf("%s.%s.bak", c.path, time.Now().UTC().Format("20060102T150405Z"))
		_ = os.WriteFile(backupPath, existing, 0o600)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.json.tmp")
	if err != nil {
		return fmt.Errorf("config: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c.doc); err != nil {
		tmp.Close()
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("config: fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("config: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		return fmt.Errorf("config: rename into place: %w", err)
	}
	if info, err := os.Stat(c.path); err == nil {
		c.loadedModTime = info.ModTime()
	}
	return nil
}

// WatchExternalChanges watches the config file's directory for writes to
// path made by something other than this process (e.g. a hand-edit),
// notifying on the returned channel. Callers are responsible for closing
// the returned watcher when done. This lets a long-running process detect
// external edits instead of only finding out the next time Save fails with
// ErrConfigStale; no command in cmd/llf calls it.
func WatchExternalChanges(path string) (*fsnotify.Watcher, <-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("config: create watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, nil, fmt.Errorf("config: watch %s: %w", dir, err)
	}

	notify := make(chan struct{}, 1)
	target := filepath.Clean(path)
	go func() {
		for event := range watcher.Events {
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			select {
			case notify <- struct{}{}:
			default:
			}
		}
	}()
	return watcher, notify, nil
}

// Backends returns a snapshot copy of all configured backends.
func (c *Config) Backends() []models.Backend {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Backend, len(c.doc.LocalLLMServers))
	copy(out, c.doc.LocalLLMServers)
	return out
}

// GetBackend looks up a configured backend by name.
func (c *Config) GetBackend(name string) (models.Backend, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, b := range c.doc.LocalLLMServers {
		if b.Name == name {
			return b, true
		}
	}
	return models.Backend{}, false
}

// Endpoint returns the current endpoint-selection document.
func (c *Config) Endpoint() EndpointConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.doc.LLMEndpoint
}

// ModelDir returns the configured model search directory, with a leading
// "~" expanded to the current user's home directory.
func (c *Config) ModelDir() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.doc.ModelDir)
}

// CacheDir returns the configured cache directory for server logs and
// state, with a leading "~" expanded to the current user's home directory.
func (c *Config) CacheDir() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.doc.CacheDir)
}

// expandHome replaces a leading "~" with the user's home directory. A
// directory whose home cannot be resolved is returned unexpanded rather
// than failing the caller — the subsequent os.MkdirAll will surface the
// real problem if the literal path truly can't be created.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}

// GetActiveBackend resolves the backend selected as the default local
// endpoint, per the current llm_endpoint.default_local_server field.
func (c *Config) GetActiveBackend() (models.Backend, bool) {
	c.mu.RLock()
	name := c.doc.LLMEndpoint.DefaultLocalServer
	c.mu.RUnlock()
	if name == "" {
		return models.Backend{}, false
	}
	return c.GetBackend(name)
}

// SwitchDefault changes the active local backend by name, persisting the
// change. Switching to the same name twice in a row, or back to a prior
// name, is idempotent: the document converges to the same state each time.
func (c *Config) SwitchDefault(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	found := false
	for _, b := range c.doc.LocalLLMServers {
		if b.Name == name {
			found = true
			break
		}
	}
	if !found {
		return &BackendNotFoundError{Name: name}
	}
	c.doc.LLMEndpoint.DefaultLocalServer = name
	return c.saveLocked()
}

// SetBackendHost changes a local backend's bind address, persisting the
// change. Used by "server start --share" to bind the wildcard address
// instead of loopback ahead of a start, and to restore loopback afterward.
func (c *Config) SetBackendHost(name, host string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.doc.LocalLLMServers {
		if c.doc.LocalLLMServers[i].Name == name {
			c.doc.LocalLLMServers[i].Host = host
			return c.saveLocked()
		}
	}
	return &BackendNotFoundError{Name: name}
}

// SetToolExecutionMode persists the tool-execution mode for the chat pipeline.
func (c *Config) SetToolExecutionMode(mode models.ToolExecutionMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch mode {
	case models.SinglePass, models.DualPassWriteOnly, models.DualPassAll:
	default:
		return &ValidationError{Issues: []string{fmt.Sprintf("unknown tool_execution_mode %q", mode)}}
	}
	c.doc.LLMEndpoint.ToolExecutionMode = mode
	return c.saveLocked()
}

// AddBackend appends a new backend, assigning an auto port for local
// backends that did not specify one, and persists the result. Backend names
// must be unique and match the [A-Za-z0-9_-]+ pattern; local backend ports
// must be unique across all local backends.
func (c *Config) AddBackend(b models.Backend) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if issues := validateBackendName(b.Name); len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	for _, existing := range c.doc.LocalLLMServers {
		if existing.Name == b.Name {
			return &ValidationError{Issues: []string{fmt.Sprintf("backend %q already exists", b.Name)}}
		}
	}

	if b.Kind == "" {
		b.Kind = models.BackendLocal
	}
	if b.Kind == models.BackendLocal {
		if b.Host == "" {
			b.Host = "127.0.0.1"
		}
		if b.Port == 0 {
			b.Port = c.nextFreePortLocked()
		} else {
			for _, existing := range c.doc.LocalLLMServers {
				if existing.Kind == models.BackendLocal && existing.Port == b.Port {
					return &ValidationError{Issues: []string{fmt.Sprintf("port %d already used by backend %q", b.Port, existing.Name)}}
				}
			}
		}
		if b.HealthcheckInterval <= 0 {
			return &ValidationError{Issues: []string{"healthcheck_interval must be positive"}}
		}
		if strings.TrimSpace(b.BinaryPath) == "" {
			return &ValidationError{Issues: []string{"binary_path is required"}}
		}
	}

	c.doc.LocalLLMServers = append(c.doc.LocalLLMServers, b)
	return c.saveLocked()
}

// RemoveBackend deletes a configured backend by name. Removing the active
// default backend clears the default_local_server selection.
func (c *Config) RemoveBackend(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := -1
	for i, b := range c.doc.LocalLLMServers {
		if b.Name == name {
			idx = i
			break
		}
	}
	if idx == -1 {
		return &BackendNotFoundError{Name: name}
	}
	c.doc.LocalLLMServers = append(c.doc.LocalLLMServers[:idx], c.doc.LocalLLMServers[idx+1:]...)
	if c.doc.LLMEndpoint.DefaultLocalServer == name {
		c.doc.LLMEndpoint.DefaultLocalServer = ""
	}
	return c.saveLocked()
}

// nextFreePortLocked returns the smallest free port greater than the
// highest currently assigned local port. Callers must hold c.mu.
func (c *Config) nextFreePortLocked() int {
	used := map[int]bool{}
	highest := 8000
	for _, b := range c.doc.LocalLLMServers {
		if b.Kind != models.BackendLocal || b.Port == 0 {
			continue
		}
		used[b.Port] = true
		if b.Port > highest {
			highest = b.Port
		}
	}
	candidate := highest + 1
	for used[candidate] {
		candidate++
	}
	return candidate
}

func validateDocument(doc *Document) []string {
	var issues []string
	names := map[string]bool{}
	ports := map[int]bool{}
	for _, b := range doc.LocalLLMServers {
		issues = append(issues, validateBackendName(b.Name)...)
		if names[b.Name] {
			issues = append(issues, fmt.Sprintf("duplicate backend name %q", b.Name))
		}
		names[b.Name] = true

		switch {
		case b.Kind == models.BackendLocal && b.Remote != nil:
			issues = append(issues, fmt.Sprintf("backend %q: local backend must not set remote", b.Name))
		case b.Kind == models.BackendRemote && b.Remote == nil:
			issues = append(issues, fmt.Sprintf("backend %q: remote backend requires remote config", b.Name))
		}

		if b.Kind == models.BackendLocal {
			if b.Port != 0 {
				if ports[b.Port] {
					issues = append(issues, fmt.Sprintf("duplicate local port %d (backend %q)", b.Port, b.Name))
				}
				ports[b.Port] = true
			}
			if b.HealthcheckInterval <= 0 {
				issues = append(issues, fmt.Sprintf("backend %q: healthcheck_interval must be positive", b.Name))
			}
			if strings.TrimSpace(b.BinaryPath) == "" {
				issues = append(issues, fmt.Sprintf("backend %q: binary_path is required", b.Name))
			}
		}
	}
	if doc.LLMEndpoint.DefaultLocalServer != "" && !names[doc.LLMEndpoint.DefaultLocalServer] {
		issues = append(issues, fmt.Sprintf("default_local_server %q does not match any configured backend", doc.LLMEndpoint.DefaultLocalServer))
	}
	switch doc.LLMEndpoint.ToolExecutionMode {
	case "", models.SinglePass, models.DualPassWriteOnly, models.DualPassAll:
	default:
		issues = append(issues, fmt.Sprintf("unknown tool_execution_mode %q", doc.LLMEndpoint.ToolExecutionMode))
	}
	sort.Strings(issues)
	return issues
}

var backendNameOK = func(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}

func validateBackendName(name string) []string {
	if !backendNameOK(name) {
		return []string{fmt.Sprintf("backend name %q must match [A-Za-z0-9_-]+", name)}
	}
	return nil
}
