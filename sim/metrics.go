// Tracks scheduler-wide statistics and exports immutable state snapshots.

package sim

import (
	"gonum.org/v1/gonum/stat"
)

// SchedulingStats aggregates accounting over terminated processes.
type SchedulingStats struct {
	CompletedProcesses    int     `json:"completedProcesses"`
	TotalProcesses        int     `json:"totalProcesses"`
	AverageWaitingTime    float64 `json:"averageWaitingTime"`    // mean over terminated processes; 0 when none
	AverageTurnaroundTime float64 `json:"averageTurnaroundTime"` // mean over terminated processes; 0 when none
}

// SystemState is a deep-copied snapshot of the scheduler.
type SystemState struct {
	Processes        []Process        `json:"processes"`
	CurrentProcess   *Process         `json:"currentProcess"`
	CurrentTime      int64            `json:"currentTime"`
	Algorithm        SchedulingPolicy `json:"algorithm"`
	TimeQuantum      int64            `json:"timeQuantum"`
	TimeSliceCounter int64            `json:"timeSliceCounter"`
	IsCompleted      bool             `json:"isCompleted"`
	Stats            SchedulingStats  `json:"stats"`
}

// Stats computes the scheduling statistics.
func (s *Scheduler) Stats() SchedulingStats {
	stats := SchedulingStats{TotalProcesses: len(s.processes)}
	var waiting, turnaround []float64
	for _, p := range s.processes {
		if p.State != StateTerminated {
			continue
		}
		waiting = append(waiting, float64(p.WaitingTime))
		turnaround = append(turnaround, float64(p.TurnaroundTime))
	}
	stats.CompletedProcesses = len(waiting)
	if stats.CompletedProcesses > 0 {
		stats.AverageWaitingTime = stat.Mean(waiting, nil)
		stats.AverageTurnaroundTime = stat.Mean(turnaround, nil)
	}
	return stats
}

// State exports the full scheduler state. The snapshot shares no memory with the engine.
func (s *Scheduler) State() SystemState {
	procs := make([]Process, len(s.processes))
	for i, p := range s.processes {
		procs[i] = *p
	}
	var current *Process
	if s.current != nil {
		cp := *s.current
		current = &cp
	}
	return SystemState{
		Processes:        procs,
		CurrentProcess:   current,
		CurrentTime:      s.clock,
		Algorithm:        s.policy,
		TimeQuantum:      s.quantum,
		TimeSliceCounter: s.sliceCounter,
		IsCompleted:      s.IsAllProcessesCompleted(),
		Stats:            s.Stats(),
	}
}
