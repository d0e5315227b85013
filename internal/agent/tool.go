// Package agent holds the pieces the streaming chat pipeline and the
// built-in tool implementations share: the upstream OpenAI-compatible
// client used to talk to whichever backend the router resolved, and the
// narrow in-process Tool interface that internal/tools/* implements.
package agent

import (
	"context"
	"encoding/json"
)

// Tool is an in-process, LLM-invokable tool implementation: the read,
// write, edit, and exec tools under internal/tools/* all satisfy this.
// The dispatcher never calls these directly — it calls through the
// dispatch.Executor adapter in internal/toolexec, which wraps a Tool and
// discards everything but Execute's result.
type Tool interface {
	Name() string
	Description() string
	Schema() json.RawMessage
	Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}

// ToolResult is the raw output of an in-process Tool, before the
// dispatcher normalizes it into models.ToolResult. Content is always a
// JSON-encoded string; IsError marks a tool-level failure that is still a
// successful Execute call (no Go error), matching the convention every
// tool under internal/tools/* already uses.
type ToolResult struct {
	Content string
	IsError bool
}
