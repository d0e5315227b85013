// Package health implements the health prober: a short-timeout HTTP probe
// against a backend's OpenAI-compatible endpoint used to classify it as
// ready, not-ready, or unreachable.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/mattwalker75/llf-control-plane/internal/metrics"
)

// Status is the outcome of a single Probe call.
type Status string

const (
	StatusReady       Status = "ready"
	StatusNotReady    Status = "not_ready"
	StatusUnreachable Status = "unreachable"
)

const probeTimeout = 5 * time.Second

// Prober issues readiness probes against local backend servers.
type Prober struct {
	client *http.Client
}

// New builds a Prober with a bounded per-probe HTTP client, matching the
// short-timeout client the teacher's discovery probe uses.
func New() *Prober {
	return &Prober{client: &http.Client{Timeout: probeTimeout}}
}

// Probe issues a GET against the backend's model-listing endpoint and
// classifies the result. A 2xx response is Ready and any other status is
// NotReady; a request that cannot be built or any transport error
// (including a deadline or a refused connection) is Unreachable.
func (p *Prober) Probe(ctx context.Context, baseURL string) Status {
	start := time.Now()
	defer func() { metrics.ObserveProbeLatency(time.Since(start)) }()

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/models", nil)
	if err != nil {
		return StatusUnreachable
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return StatusUnreachable
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return StatusReady
	}
	return StatusNotReady
}

// String satisfies fmt.Stringer for log lines.
func (s Status) String() string { return string(s) }
