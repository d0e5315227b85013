// Package memorygate implements the memory safety gate: before a local
// backend is started, it estimates the working-set size of every backend
// that would then be running and denies the start if that exceeds
// available system memory.
package memorygate

import (
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v4/mem"

	"github.com/mattwalker75/llf-control-plane/pkg/models"
)

// weightsSizeMultiplier accounts for runtime overhead (KV cache, context
// buffers) beyond the raw weights-file size on disk.
const weightsSizeMultiplier = 1.1

// MemoryGateDeniedError reports why a backend start was denied, with the
// diagnostic figures the base spec requires.
type MemoryGateDeniedError struct {
	WouldAllocate   uint64
	Available       uint64
	BackendsRunning []string
}

func (e *MemoryGateDeniedError) Error() string {
	return fmt.Sprintf(
		"memory gate denied: would allocate %d bytes, %d available (backends running: %v)",
		e.WouldAllocate, e.Available, e.BackendsRunning,
	)
}

// MemoryProbe abstracts the OS available-memory query so it can be
// substituted in tests.
type MemoryProbe func() (available uint64, err error)

// SystemMemoryProbe queries the OS for currently available memory via
// gopsutil, the same library the process supervisor uses for its
// port-to-PID process-table scan.
func SystemMemoryProbe() (uint64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.Available, nil
}

// Gate evaluates whether starting candidate, given the set of backends
// already running, would exceed available system memory. It returns nil if
// the start is allowed. Passing force=true bypasses the check entirely,
// mirroring `server start --force`.
func Gate(probe MemoryProbe, running []models.Backend, candidate models.Backend, force bool) error {
	if force {
		return nil
	}
	if probe == nil {
		probe = SystemMemoryProbe
	}

	available, err := probe()
	if err != nil {
		return fmt.Errorf("memorygate: probe system memory: %w", err)
	}

	var wouldAllocate uint64
	names := make([]string, 0, len(running)+1)
	for _, b := range running {
		wouldAllocate += estimateWorkingSet(b)
		names = append(names, b.Name)
	}
	wouldAllocate += estimateWorkingSet(candidate)
	names = append(names, candidate.Name)

	if wouldAllocate > available {
		return &MemoryGateDeniedError{
			WouldAllocate:   wouldAllocate,
			Available:       available,
			BackendsRunning: names,
		}
	}
	return nil
}

func estimateWorkingSet(b models.Backend) uint64 {
	if b.WeightsFile == "" {
		return 0
	}
	info, err := os.Stat(b.WeightsFile)
	if err != nil {
		return 0
	}
	return uint64(float64(info.Size()) * weightsSizeMultiplier)
}
