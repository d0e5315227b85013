package toolregistry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/mattwalker75/llf-control-plane/pkg/models"
)

// ImportFromDirectory reads <toolsDir>/<name>/config.json, validates it,
// and appends it to the registry — the scaffold-then-import half of a
// tool's lifecycle (base spec §3 "created via scaffold; imported into
// registry"). Fails if the tool already exists or required fields are
// missing.
func (r *Registry) ImportFromDirectory(toolsDir, name string) error {
	r.mu.RLock()
	_, exists := r.tools[name]
	r.mu.RUnlock()
	if exists {
		return fmt.Errorf("toolregistry: tool %q already exists", name)
	}

	configPath := filepath.Join(toolsDir, name, "config.json")
	raw, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("toolregistry: read %s: %w", configPath, err)
	}

	var t models.Tool
	if err := json.Unmarshal(raw, &t); err != nil {
		return fmt.Errorf("toolregistry: parse %s: %w", configPath, err)
	}
	if t.Name == "" {
		t.Name = name
	}
	if t.Name != name {
		return fmt.Errorf("toolregistry: config name %q does not match directory %q", t.Name, name)
	}
	if t.Directory == "" {
		t.Directory = filepath.Join(toolsDir, name)
	}

	return r.Import(t)
}

// ExternalExecutor invokes a scaffolded tool's executable artifact: it
// writes the call's JSON arguments to the child's stdin and reads a
// single JSON result object from its stdout, the same request/response
// framing the built-in tools return in-process. The child is expected at
// <directory>/run.
type ExternalExecutor struct {
	Directory string
}

// Execute implements dispatch.Executor.
func (e ExternalExecutor) Execute(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	binPath := filepath.Join(e.Directory, "run")
	cmd := exec.CommandContext(ctx, binPath)
	cmd.Dir = e.Directory
	cmd.Stdin = bytes.NewReader(args)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("toolregistry: run %s: %w: %s", binPath, err, stderr.String())
	}
	return json.RawMessage(stdout.Bytes()), nil
}

// LoadExecutable resolves name's on-disk artifact into an invokable
// handle, per base spec §4.2. The handle's only capability is Execute;
// lookup, validation, whitelisting, and timeout enforcement remain the
// dispatcher's job.
func (r *Registry) LoadExecutable(name string) (ExternalExecutor, error) {
	t, ok := r.Get(name)
	if !ok {
		return ExternalExecutor{}, fmt.Errorf("toolregistry: tool not found: %s", name)
	}
	if t.Directory == "" {
		return ExternalExecutor{}, fmt.Errorf("toolregistry: tool %q has no directory", name)
	}
	return ExternalExecutor{Directory: t.Directory}, nil
}
