package supervisor

import (
	"context"
	"time"

	"github.com/mattwalker75/llf-control-plane/internal/health"
	"github.com/mattwalker75/llf-control-plane/internal/metrics"
	"github.com/mattwalker75/llf-control-plane/pkg/models"
)

// degradeAfter is the number of consecutive failed probes before a Ready
// backend transitions to Degraded, per base spec §4.4.
const degradeAfter = 2

// startReconcile launches the background health-probe loop for a
// newly-Ready backend. It is idempotent per-call-site: callers always
// hold bp.mu, so only one loop is ever started per Start call; Stop
// cancels it via bp.cancel.
func (m *Manager) startReconcile(name string, bp *backendProcess, backend models.Backend) {
	ctx, cancel := context.WithCancel(context.Background())
	bp.cancel = cancel

	interval := time.Duration(backend.HealthcheckInterval) * time.Second
	if interval <= 0 {
		interval = time.Second
	}

	go m.reconcileLoop(ctx, name, bp, backend, interval)
}

// reconcileLoop never auto-restarts a Degraded backend: per base spec
// §4.4, recovery to Ready only happens via a subsequent successful probe,
// and user action is required to actually restart a dead process.
func (m *Manager) reconcileLoop(ctx context.Context, name string, bp *backendProcess, backend models.Backend, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	baseURL := backend.BaseURL()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		status := m.prober.Probe(ctx, baseURL)

		bp.mu.Lock()
		if bp.proc.State != models.StateReady && bp.proc.State != models.StateDegraded {
			bp.mu.Unlock()
			return
		}
		if status == health.StatusReady {
			bp.streak = 0
			bp.proc.State = models.StateReady
		} else {
			bp.streak++
			if bp.streak >= degradeAfter {
				bp.proc.State = models.StateDegraded
				m.logger.Warn("backend health degraded", "backend", name, "status", status.String())
			}
		}
		metrics.SetBackendState(name, bp.proc.State)
		bp.mu.Unlock()
	}
}
