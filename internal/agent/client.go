package agent

import (
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Client is a thin wrapper around go-openai pointed at a single resolved
// backend (a local llama-server instance or a remote OpenAI-compatible
// API) — the same client type serves both, since the router already
// reduced them to a base URL and an API key before this package sees
// them. There is deliberately no multi-provider abstraction here: the
// whole system speaks one wire protocol (base spec §6).
type Client struct {
	oai *openai.Client
}

// NewClient builds a Client against baseURL ("http://host:port/v1" for a
// local backend, or the configured remote API base for a Remote one).
// apiKey may be a sentinel value for local backends that don't check it;
// llama-server ignores the Authorization header entirely.
func NewClient(baseURL, apiKey string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: 0} // streaming reads manage their own deadline via ctx
	return &Client{oai: openai.NewClientWithConfig(cfg)}
}

const defaultRequestTimeout = 120 * time.Second
