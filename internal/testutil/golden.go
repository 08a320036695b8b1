// Package testutil provides shared test infrastructure for the mirage simulator.
// It consolidates fixture helpers and invariant assertions used by the scenario
// and server test packages.
package testutil

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/mirage-os/mirage-sim/sim"
	"github.com/mirage-os/mirage-sim/sim/memory"
)

// WriteTempYAML writes content to name inside a per-test temp directory and returns the path.
func WriteTempYAML(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write fixture %s: %v", name, err)
	}
	return path
}

// RequireMemoryInvariants fails the test immediately when a memory snapshot breaks the
// block-list invariants.
func RequireMemoryInvariants(t *testing.T, st memory.MemoryState) {
	t.Helper()
	if err := st.Validate(); err != nil {
		t.Fatalf("memory invariants violated: %v\nblocks: %v", err, st.Blocks)
	}
	free := 0
	for _, b := range st.Blocks {
		if !b.Allocated {
			free++
		}
	}
	if free != st.FragmentationCount {
		t.Fatalf("fragmentationCount = %d, but %d free blocks present", st.FragmentationCount, free)
	}
}

// RequireSchedulerInvariants fails the test immediately when a scheduler snapshot has more
// than one running process, or when the running slot disagrees with the process table.
func RequireSchedulerInvariants(t *testing.T, st sim.SystemState) {
	t.Helper()
	var running []int64
	for _, p := range st.Processes {
		if p.State == sim.StateRunning {
			running = append(running, p.ID)
		}
		if p.RemainingTime < 0 || p.RemainingTime > p.BurstTime {
			t.Fatalf("process %d: remaining %d outside [0, %d]", p.ID, p.RemainingTime, p.BurstTime)
		}
	}
	if len(running) > 1 {
		t.Fatalf("more than one running process: %v", running)
	}
	if st.CurrentProcess != nil && st.CurrentProcess.State == sim.StateRunning &&
		(len(running) == 0 || running[0] != st.CurrentProcess.ID) {
		t.Fatalf("current process %d is not the running entry %v", st.CurrentProcess.ID, running)
	}
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}
