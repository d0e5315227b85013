package memorygate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mattwalker75/llf-control-plane/pkg/models"
)

func writeWeights(t *testing.T, size int64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "weights.gguf")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := f.Truncate(size); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return path
}

func fixedProbe(available uint64) MemoryProbe {
	return func() (uint64, error) { return available, nil }
}

func TestGateDeniesWhenOverBudget(t *testing.T) {
	weights1 := writeWeights(t, 20*1024*1024*1024)
	weights2 := writeWeights(t, 20*1024*1024*1024)

	running := []models.Backend{{Name: "a", WeightsFile: weights1}}
	candidate := models.Backend{Name: "b", WeightsFile: weights2}

	err := Gate(fixedProbe(24*1024*1024*1024), running, candidate, false)
	if err == nil {
		t.Fatal("expected memory gate to deny two 20GB backends against 24GB available")
	}
}

func TestGateAllowsWithinBudget(t *testing.T) {
	weights := writeWeights(t, 1024)
	candidate := models.Backend{Name: "a", WeightsFile: weights}

	err := Gate(fixedProbe(1<<40), nil, candidate, false)
	if err != nil {
		t.Fatalf("expected gate to allow small backend, got %v", err)
	}
}

func TestGateForceBypasses(t *testing.T) {
	weights := writeWeights(t, 40*1024*1024*1024)
	candidate := models.Backend{Name: "a", WeightsFile: weights}

	err := Gate(fixedProbe(1), nil, candidate, true)
	if err != nil {
		t.Fatalf("expected force=true to bypass the gate, got %v", err)
	}
}
