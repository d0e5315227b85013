package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mattwalker75/llf-control-plane/pkg/models"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Backends()) != 0 {
		t.Fatalf("expected no backends, got %d", len(cfg.Backends()))
	}
	if cfg.Endpoint().ToolExecutionMode != models.SinglePass {
		t.Fatalf("expected default tool execution mode, got %q", cfg.Endpoint().ToolExecutionMode)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.AddBackend(models.Backend{Name: "alpha", Kind: models.BackendLocal, Port: 8001, HealthcheckInterval: 1, BinaryPath: "llama-server"}); err != nil {
		t.Fatalf("AddBackend: %v", err)
	}
	if err := cfg.SwitchDefault("alpha"); err != nil {
		t.Fatalf("SwitchDefault: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	active, ok := reloaded.GetActiveBackend()
	if !ok || active.Name != "alpha" {
		t.Fatalf("expected active backend alpha, got %+v ok=%v", active, ok)
	}
}

func TestAddBackendRejectsDuplicatePort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.AddBackend(models.Backend{Name: "a", Kind: models.BackendLocal, Port: 8001, HealthcheckInterval: 1, BinaryPath: "llama-server"}); err != nil {
		t.Fatalf("AddBackend a: %v", err)
	}
	if err := cfg.AddBackend(models.Backend{Name: "b", Kind: models.BackendLocal, Port: 8001, HealthcheckInterval: 1, BinaryPath: "llama-server"}); err == nil {
		t.Fatal("expected duplicate port to be rejected")
	}
}

func TestAddBackendRejectsInvalidName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.AddBackend(models.Backend{Name: "bad name!", Kind: models.BackendLocal, HealthcheckInterval: 1}); err == nil {
		t.Fatal("expected invalid name to be rejected")
	}
}

func TestAutoPortAssignment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.AddBackend(models.Backend{Name: "a", Kind: models.BackendLocal, Port: 8005, HealthcheckInterval: 1, BinaryPath: "llama-server"}); err != nil {
		t.Fatalf("AddBackend a: %v", err)
	}
	if err := cfg.AddBackend(models.Backend{Name: "b", Kind: models.BackendLocal, HealthcheckInterval: 1, BinaryPath: "llama-server"}); err != nil {
		t.Fatalf("AddBackend b: %v", err)
	}
	b, ok := cfg.GetBackend("b")
	if !ok {
		t.Fatal("expected backend b to exist")
	}
	if b.Port != 8006 {
		t.Fatalf("expected auto-assigned port 8006, got %d", b.Port)
	}
}

func TestSwitchDefaultIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	_ = cfg.AddBackend(models.Backend{Name: "a", Kind: models.BackendLocal, Port: 8001, HealthcheckInterval: 1, BinaryPath: "llama-server"})
	_ = cfg.AddBackend(models.Backend{Name: "b", Kind: models.BackendLocal, Port: 8002, HealthcheckInterval: 1, BinaryPath: "llama-server"})

	if err := cfg.SwitchDefault("a"); err != nil {
		t.Fatalf("switch a: %v", err)
	}
	if err := cfg.SwitchDefault("b"); err != nil {
		t.Fatalf("switch b: %v", err)
	}
	if err := cfg.SwitchDefault("a"); err != nil {
		t.Fatalf("switch a again: %v", err)
	}
	active, _ := cfg.GetActiveBackend()
	if active.Name != "a" {
		t.Fatalf("expected active backend a, got %s", active.Name)
	}
}

func TestSwitchDefaultUnknownBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.SwitchDefault("missing"); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestLegacyDefaultLLMMigration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	writeFile(t, path, `{
		"local_llm_servers": [],
		"llm_endpoint": {},
		"default_llm": {"model_name": "llama-3-8b", "gguf_file": "llama-3-8b.Q4_K_M.gguf"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	active, ok := cfg.GetActiveBackend()
	if !ok {
		t.Fatal("expected legacy config to promote a default backend")
	}
	if active.Name != "default" || active.WeightsFile != "llama-3-8b.Q4_K_M.gguf" {
		t.Fatalf("unexpected promoted backend: %+v", active)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
}
