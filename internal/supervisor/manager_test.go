package supervisor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mattwalker75/llf-control-plane/internal/config"
	"github.com/mattwalker75/llf-control-plane/internal/health"
	"github.com/mattwalker75/llf-control-plane/pkg/models"
)

// sleeperScript writes an executable shell script that just sleeps,
// standing in for llama-server: the supervisor only cares that a process
// exists at the recorded PID, and readiness is faked via a separate
// httptest server set as the backend's api_base_url.
func sleeperScript(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-llama-server")
	if err := os.WriteFile(path, []byte("#!/bin/sh\nsleep 30\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func weightsFile(t *testing.T, size int64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "weights.gguf")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create weights: %v", err)
	}
	defer f.Close()
	if err := f.Truncate(size); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return path
}

func testManager(t *testing.T, backend models.Backend) (*Manager, *config.Config) {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.json")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	if err := cfg.AddBackend(backend); err != nil {
		t.Fatalf("AddBackend: %v", err)
	}
	m := New(cfg, health.New(), nil, t.TempDir())
	return m, cfg
}

func TestStartSpawnsAndReportsReady(t *testing.T) {
	ready := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ready.Close()

	backend := models.Backend{
		Name:                "a",
		Kind:                models.BackendLocal,
		Host:                "127.0.0.1",
		Port:                18001,
		BinaryPath:          sleeperScript(t),
		WeightsFile:         weightsFile(t, 1024),
		HealthcheckInterval: 1,
		APIBaseURL:          ready.URL,
	}
	m, _ := testManager(t, backend)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	proc, err := m.Start(ctx, "a", false)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if proc.State != models.StateReady {
		t.Fatalf("state = %s, want ready", proc.State)
	}
	if !m.IsRunning("a") {
		t.Error("expected IsRunning(a) to be true")
	}
	running := m.GetRunning()
	if len(running) != 1 || running[0] != "a" {
		t.Errorf("GetRunning() = %v, want [a]", running)
	}

	if err := m.Stop(context.Background(), "a"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if m.IsRunning("a") {
		t.Error("expected IsRunning(a) to be false after Stop")
	}
}

func TestStartRejectsEmptyWeightsFile(t *testing.T) {
	backend := models.Backend{
		Name:                "a",
		Kind:                models.BackendLocal,
		Host:                "127.0.0.1",
		Port:                18002,
		BinaryPath:          sleeperScript(t),
		WeightsFile:         weightsFile(t, 0),
		HealthcheckInterval: 1,
	}
	m, _ := testManager(t, backend)

	_, err := m.Start(context.Background(), "a", false)
	if err == nil {
		t.Fatal("expected an error starting a backend with a 0-byte weights file")
	}
}

func TestStartDeniedByMemoryGate(t *testing.T) {
	backend := models.Backend{
		Name:                "a",
		Kind:                models.BackendLocal,
		Host:                "127.0.0.1",
		Port:                18003,
		BinaryPath:          sleeperScript(t),
		WeightsFile:         weightsFile(t, 20*1024*1024*1024),
		HealthcheckInterval: 1,
	}
	m, _ := testManager(t, backend)
	m.memoryProbe = func() (uint64, error) { return 10 * 1024 * 1024 * 1024, nil }

	_, err := m.Start(context.Background(), "a", false)
	if err == nil {
		t.Fatal("expected memory gate denial")
	}

	// force bypasses the gate, but the rest of Start still runs, so point
	// at a fake readiness endpoint to let it converge.
	ready := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ready.Close()
	b, _ := m.cfg.GetBackend("a")
	b.APIBaseURL = ready.URL
	_ = m.cfg.RemoveBackend("a")
	_ = m.cfg.AddBackend(b)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := m.Start(ctx, "a", true); err != nil {
		t.Fatalf("Start with force=true: %v", err)
	}
}
