package scenario

import (
	"fmt"
	"io"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/mirage-os/mirage-sim/sim"
	"github.com/mirage-os/mirage-sim/sim/memory"
	"github.com/mirage-os/mirage-sim/sim/trace"
)

// Distribution captures statistical summary of a per-process metric, in ticks.
type Distribution struct {
	Mean  float64
	P50   float64
	P95   float64
	Max   float64
	Count int
}

// NewDistribution computes a Distribution from raw values.
// Returns zero-value Distribution for empty input.
func NewDistribution(values []float64) Distribution {
	if len(values) == 0 {
		return Distribution{}
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return Distribution{
		Mean:  stat.Mean(sorted, nil),
		P50:   stat.Quantile(0.50, stat.Empirical, sorted, nil),
		P95:   stat.Quantile(0.95, stat.Empirical, sorted, nil),
		Max:   floats.Max(sorted),
		Count: len(sorted),
	}
}

// Report is the outcome of a scenario run.
type Report struct {
	Ticks         int64
	Scheduler     sim.SystemState
	Memory        memory.MemoryState
	MemoryResults []OpResult
	Trace         *trace.TraceSummary
}

// Waiting returns the waiting-time distribution over terminated processes.
func (r *Report) Waiting() Distribution {
	return NewDistribution(r.terminated(func(p sim.Process) int64 { return p.WaitingTime }))
}

// Turnaround returns the turnaround-time distribution over terminated processes.
func (r *Report) Turnaround() Distribution {
	return NewDistribution(r.terminated(func(p sim.Process) int64 { return p.TurnaroundTime }))
}

func (r *Report) terminated(field func(sim.Process) int64) []float64 {
	var vals []float64
	for _, p := range r.Scheduler.Processes {
		if p.IsTerminated() {
			vals = append(vals, float64(field(p)))
		}
	}
	return vals
}

// Print writes a human-readable summary of the run to w.
func (r *Report) Print(w io.Writer) {
	st := r.Scheduler
	fmt.Fprintln(w, "=== Scheduling Metrics ===")
	fmt.Fprintf(w, "Algorithm            : %s (quantum %d)\n", st.Algorithm, st.TimeQuantum)
	fmt.Fprintf(w, "Ticks Simulated      : %d\n", r.Ticks)
	fmt.Fprintf(w, "Completed Processes  : %d / %d\n", st.Stats.CompletedProcesses, st.Stats.TotalProcesses)
	if st.Stats.CompletedProcesses > 0 {
		wt, tt := r.Waiting(), r.Turnaround()
		fmt.Fprintf(w, "Average Waiting      : %.2f ticks (p50 %.1f, p95 %.1f, max %.0f)\n", st.Stats.AverageWaitingTime, wt.P50, wt.P95, wt.Max)
		fmt.Fprintf(w, "Average Turnaround   : %.2f ticks (p50 %.1f, p95 %.1f, max %.0f)\n", st.Stats.AverageTurnaroundTime, tt.P50, tt.P95, tt.Max)
	}
	fmt.Fprintf(w, "%-4s %-12s %6s %8s %7s %11s %-10s\n", "ID", "NAME", "BURST", "PRIORITY", "WAITING", "TURNAROUND", "STATE")
	for _, p := range st.Processes {
		fmt.Fprintf(w, "%-4d %-12s %6d %8d %7d %11d %-10s\n", p.ID, p.Name, p.BurstTime, p.Priority, p.WaitingTime, p.TurnaroundTime, p.State)
	}

	mem := r.Memory
	fmt.Fprintln(w, "=== Memory Metrics ===")
	fmt.Fprintf(w, "Algorithm            : %s\n", mem.Algorithm)
	fmt.Fprintf(w, "Allocated / Free     : %d / %d of %d\n", mem.TotalAllocated, mem.TotalFree, mem.TotalSize)
	fmt.Fprintf(w, "Free Blocks          : %d\n", mem.FragmentationCount)
	failed := 0
	for _, res := range r.MemoryResults {
		if !res.Success {
			failed++
		}
	}
	fmt.Fprintf(w, "Memory Operations    : %d (%d failed)\n", len(r.MemoryResults), failed)
	for _, b := range mem.Blocks {
		owner := "-"
		if b.Allocated {
			owner = b.Owner()
		}
		fmt.Fprintf(w, "  [%6d, %6d) %-6s %s\n", b.Start, b.End(), blockState(b), owner)
	}

	if r.Trace != nil && len(r.Trace.Timeline) > 0 {
		fmt.Fprintln(w, "=== Timeline ===")
		for _, seg := range r.Trace.Timeline {
			fmt.Fprintf(w, "  [%4d, %4d) process %d\n", seg.Start, seg.End, seg.ProcessID)
		}
		fmt.Fprintf(w, "Context Switches     : %d\n", r.Trace.ContextSwitches)
	}
}

func blockState(b memory.Block) string {
	if b.Allocated {
		return "used"
	}
	return "free"
}
