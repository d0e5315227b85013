// Package toolexec bridges the in-process agent.Tool implementations
// (internal/tools/files, internal/tools/exec) into the dispatch.Executor
// interface the dispatcher calls through uniformly. Externally-scaffolded
// tools are not handled here.
package toolexec

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mattwalker75/llf-control-plane/internal/agent"
)

// Adapter wraps an agent.Tool as a dispatch.Executor, discarding nothing
// but the IsError flag's string-vs-struct distinction: a tool-level error
// is reported as a Go error so the dispatcher's normal ErrToolFailed path
// picks it up, same as any other executor failure.
type Adapter struct {
	Tool agent.Tool
}

// Execute implements dispatch.Executor.
func (a Adapter) Execute(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	result, err := a.Tool.Execute(ctx, args)
	if err != nil {
		return nil, err
	}
	if result.IsError {
		return nil, errors.New(result.Content)
	}
	return json.RawMessage(result.Content), nil
}

// Metadata derives the registry-facing Tool description (name, schema)
// from an agent.Tool's own Name/Description/Schema, so a built-in tool
// only needs to be registered once.
func Metadata(t agent.Tool) (name, description string, schema json.RawMessage) {
	return t.Name(), t.Description(), t.Schema()
}
