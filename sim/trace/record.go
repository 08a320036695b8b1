// Package trace provides decision-trace recording for scheduling and allocation analysis.
// This package has no dependencies on sim/ or sim/memory/; it stores pure data types.
package trace

// PreemptReason names why a running process went back to the ready pool.
type PreemptReason string

const (
	PreemptQuantum      PreemptReason = "quantum"
	PreemptPolicySwitch PreemptReason = "policy-switch"
	PreemptRemoved      PreemptReason = "removed"
)

// DispatchRecord captures a process being promoted from ready to running.
type DispatchRecord struct {
	Clock     int64
	ProcessID int64
	Policy    string
	ReadyLen  int // size of the ready pool the choice was made from
}

// PreemptRecord captures a running process leaving the CPU before completion.
// Clock is the tick after which the process no longer holds the CPU.
type PreemptRecord struct {
	Clock     int64
	ProcessID int64
	Reason    PreemptReason
}

// TerminationRecord captures a process finishing its burst.
// Clock is the tick during which its final unit of work ran.
type TerminationRecord struct {
	Clock      int64
	ProcessID  int64
	Turnaround int64
}

// AllocationRecord captures a single placement decision.
type AllocationRecord struct {
	ProcessID string
	Size      int64
	Start     int64 // -1 when the allocation failed
	Policy    string
	Success   bool
	Reason    string
}

// DeallocationRecord captures a single free request.
type DeallocationRecord struct {
	ProcessID string
	Start     int64
	Size      int64
	Success   bool
	Reason    string
}
