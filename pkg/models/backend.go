package models

import "strconv"

// BackendKind distinguishes a locally supervised server from a remote
// OpenAI-compatible API the control plane never starts or stops.
type BackendKind string

const (
	BackendLocal  BackendKind = "local"
	BackendRemote BackendKind = "remote"
)

// ToolExecutionMode governs whether and how tool results are fed back
// into a second model pass within a chat turn.
type ToolExecutionMode string

const (
	// SinglePass re-invokes the model once after each round of dispatched
	// tool calls, feeding the tool results back so it can answer.
	SinglePass ToolExecutionMode = "single_pass"
	// DualPassWriteOnly re-invokes the model only when at least one dispatched
	// tool call has a side effect (file write, command execution).
	DualPassWriteOnly ToolExecutionMode = "dual_pass_write_only"
	// DualPassAll always re-invokes the model after any tool call.
	DualPassAll ToolExecutionMode = "dual_pass_all"
)

// RemoteEndpoint describes how to reach a remote OpenAI-compatible API.
type RemoteEndpoint struct {
	BaseURL   string `json:"base_url"`
	APIKey    string `json:"api_key,omitempty"`
	ModelName string `json:"model_name"`
}

// Backend is one configured LLM server, local or remote.
type Backend struct {
	Name                string            `json:"name"`
	Kind                BackendKind       `json:"kind"`
	Host                string            `json:"host,omitempty"`
	Port                int               `json:"port,omitempty"`
	BinaryPath          string            `json:"binary_path,omitempty"`
	ModelDir            string            `json:"model_dir,omitempty"`
	WeightsFile         string            `json:"weights_file,omitempty"`
	ServerParams        map[string]string `json:"server_params,omitempty"`
	HealthcheckInterval int               `json:"healthcheck_interval"`
	AutoStart           bool              `json:"auto_start"`
	APIBaseURL          string            `json:"api_base_url,omitempty"`
	APIKey              string            `json:"api_key,omitempty"`
	Remote              *RemoteEndpoint   `json:"remote,omitempty"`
}

// IsLocal reports whether this backend is supervised by this process.
func (b Backend) IsLocal() bool {
	return b.Kind == BackendLocal
}

// BaseURL returns the OpenAI-compatible base URL to address this backend at.
func (b Backend) BaseURL() string {
	if b.APIBaseURL != "" {
		return b.APIBaseURL
	}
	if b.Remote != nil && b.Remote.BaseURL != "" {
		return b.Remote.BaseURL
	}
	if b.Host != "" && b.Port != 0 {
		return "http://" + b.Host + ":" + strconv.Itoa(b.Port) + "/v1"
	}
	return ""
}
