package models

import "encoding/json"

// ToolKind classifies how a Tool participates in the chat pipeline.
type ToolKind string

const (
	// LLMInvokable tools are exposed to the model as callable functions.
	LLMInvokable ToolKind = "llm_invokable"
	// PreProcessor tools run before a request reaches the model (e.g. the XML adapter).
	PreProcessor ToolKind = "pre_processor"
	// PostProcessor tools run after a model response, before it reaches the caller.
	PostProcessor ToolKind = "post_processor"
)

// ToolEnabled is the tri-state persisted enablement of a tool.
type ToolEnabled string

const (
	EnabledOff  ToolEnabled = "off"
	EnabledOn   ToolEnabled = "on"
	EnabledAuto ToolEnabled = "auto"
)

// Tool is a registered entry in the tool registry document.
type Tool struct {
	Name             string          `json:"name"`
	Kind             ToolKind        `json:"kind"`
	Description      string          `json:"description,omitempty"`
	Schema           json.RawMessage `json:"schema,omitempty"`
	Enabled          ToolEnabled     `json:"enabled"`
	Category         string          `json:"category,omitempty"`
	Dependencies     []string        `json:"dependencies,omitempty"`
	RequiresApproval bool            `json:"requires_approval,omitempty"`
	Whitelist        []string        `json:"whitelist,omitempty"`
	Directory        string          `json:"directory,omitempty"`
}
