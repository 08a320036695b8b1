// Defines the Process struct that models a simulated job in the scheduler.
// Tracks burst, priority, remaining work and the waiting/turnaround accounting.

package sim

import (
	"fmt"
)

// ProcessState represents the lifecycle state of a process.
type ProcessState string

const (
	StateReady      ProcessState = "ready"
	StateRunning    ProcessState = "running"
	StateTerminated ProcessState = "terminated"
)

// ProcessSpec carries the caller-supplied inputs for AddProcess.
// Validating BurstTime and Priority is the caller's responsibility.
type ProcessSpec struct {
	Name      string `json:"name" yaml:"name"`
	BurstTime int64  `json:"burstTime" yaml:"burst_time"`
	Priority  int64  `json:"priority" yaml:"priority"`
}

// Process models a single job's lifecycle in the simulation.
type Process struct {
	ID        int64  `json:"id"`   // Unique identifier, assigned on admission and never reused
	Name      string `json:"name"` // Display only
	BurstTime int64  `json:"burstTime"`
	Priority  int64  `json:"priority"` // Larger = served first under the Priority policy

	ArrivalTime    int64        `json:"arrivalTime"`    // Tick at which the process entered the ready set
	RemainingTime  int64        `json:"remainingTime"`  // Ticks left; starts at BurstTime
	State          ProcessState `json:"state"`          // ready, running, terminated
	WaitingTime    int64        `json:"waitingTime"`    // Ticks spent ready
	TurnaroundTime int64        `json:"turnaroundTime"` // Termination tick minus ArrivalTime, set once

	readySeq int64 // order of entry into the ready pool; round-robin serves the lowest
}

// String returns a human-readable representation of a Process.
func (p Process) String() string {
	return fmt.Sprintf("Process: (ID: %d, Name: %s, State: %s, Remaining: %d/%d)", p.ID, p.Name, p.State, p.RemainingTime, p.BurstTime)
}

// IsTerminated reports whether the process has reached its absorbing state.
func (p *Process) IsTerminated() bool {
	return p.State == StateTerminated
}
