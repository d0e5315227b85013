// Package router implements the endpoint router: resolution of which
// backend a chat request should be sent to, without itself starting or
// stopping anything.
package router

import (
	"fmt"

	"github.com/mattwalker75/llf-control-plane/internal/config"
	"github.com/mattwalker75/llf-control-plane/pkg/models"
)

// Endpoint is the resolved target for a chat request.
type Endpoint struct {
	BaseURL        string
	APIKey         string
	ModelName      string
	Kind           models.BackendKind
	BackendName    string
}

// Resolve determines which endpoint a chat request should target: the
// explicitly configured llm_endpoint override if one names a base URL
// directly, otherwise the active local backend.
func Resolve(cfg *config.Config) (Endpoint, error) {
	ep := cfg.Endpoint()

	if ep.APIBaseURL != "" {
		return Endpoint{
			BaseURL:   ep.APIBaseURL,
			APIKey:    ep.APIKey,
			ModelName: ep.ModelName,
			Kind:      models.BackendRemote,
		}, nil
	}

	backend, ok := cfg.GetActiveBackend()
	if !ok {
		return Endpoint{}, fmt.Errorf("router: no active backend configured")
	}

	modelName := ep.ModelName
	if modelName == "" {
		modelName = backend.WeightsFile
	}

	return Endpoint{
		BaseURL:     backend.BaseURL(),
		APIKey:      backend.APIKey,
		ModelName:   modelName,
		Kind:        backend.Kind,
		BackendName: backend.Name,
	}, nil
}
