// sim/simulator.go
package sim

import (
	"github.com/sirupsen/logrus"

	"github.com/mirage-os/mirage-sim/sim/trace"
)

// DefaultTimeQuantum is the round-robin quantum used when none is configured.
const DefaultTimeQuantum = 2

// SchedulerConfig groups the scheduling parameters for NewScheduler.
type SchedulerConfig struct {
	Policy      SchedulingPolicy       // FCFS (default), SJF, Priority or RR
	TimeQuantum int64                  // RR ticks per turn (≤0 = DefaultTimeQuantum)
	Trace       *trace.SimulationTrace // optional decision trace (nil = disabled)
}

// Scheduler is the CPU scheduling engine. It holds the process table, the running slot,
// and the logical clock, and advances exactly one tick per ExecuteStep call.
//
// Scheduler is not safe for concurrent use; callers serialize access.
type Scheduler struct {
	clock int64
	// processes is kept in admission order; orderings use it as their stable base
	processes []*Process
	// current is the process holding the CPU, or nil when the slot is empty
	current      *Process
	policy       SchedulingPolicy
	order        ReadyOrder
	quantum      int64
	sliceCounter int64 // consecutive ticks the current process has run in this turn
	nextID       int64
	readySeq     int64
	trace        *trace.SimulationTrace
}

// NewScheduler creates a Scheduler with no processes at tick 0.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	policy := cfg.Policy.normalize()
	quantum := cfg.TimeQuantum
	if quantum <= 0 {
		quantum = DefaultTimeQuantum
	}
	return &Scheduler{
		policy:  policy,
		order:   NewReadyOrder(policy),
		quantum: quantum,
		nextID:  1,
		trace:   cfg.Trace,
	}
}

// Clock returns the current tick.
func (s *Scheduler) Clock() int64 {
	return s.clock
}

// Policy returns the active scheduling policy.
func (s *Scheduler) Policy() SchedulingPolicy {
	return s.policy
}

// markReady moves p into the ready pool behind every process already there.
func (s *Scheduler) markReady(p *Process) {
	p.State = StateReady
	s.readySeq++
	p.readySeq = s.readySeq
}

// AddProcess admits a process at the current tick and returns a copy of it.
func (s *Scheduler) AddProcess(spec ProcessSpec) Process {
	p := &Process{
		ID:            s.nextID,
		Name:          spec.Name,
		BurstTime:     spec.BurstTime,
		Priority:      spec.Priority,
		ArrivalTime:   s.clock,
		RemainingTime: spec.BurstTime,
	}
	s.nextID++
	s.markReady(p)
	s.processes = append(s.processes, p)
	logrus.Debugf("[tick %07d] admitted process %d (%s) burst=%d priority=%d", s.clock, p.ID, p.Name, p.BurstTime, p.Priority)
	return *p
}

// RemoveProcess deletes the process with the given id. Absent ids are a no-op.
func (s *Scheduler) RemoveProcess(id int64) {
	kept := s.processes[:0]
	removed := false
	for _, p := range s.processes {
		if p.ID == id {
			removed = true
			continue
		}
		kept = append(kept, p)
	}
	// clear the tail so removed processes can be collected
	for i := len(kept); i < len(s.processes); i++ {
		s.processes[i] = nil
	}
	s.processes = kept
	if !removed {
		return
	}
	if s.current != nil && s.current.ID == id {
		s.trace.RecordPreempt(trace.PreemptRecord{Clock: s.clock, ProcessID: id, Reason: trace.PreemptRemoved})
		s.current = nil
		s.sliceCounter = 0
	}
	logrus.Debugf("[tick %07d] removed process %d", s.clock, id)
}

// Process returns a copy of the process with the given id.
func (s *Scheduler) Process(id int64) (Process, bool) {
	for _, p := range s.processes {
		if p.ID == id {
			return *p, true
		}
	}
	return Process{}, false
}

// SetSchedulingAlgorithm switches the active policy. A running process is demoted to
// ready so no process keeps the CPU across a policy switch.
func (s *Scheduler) SetSchedulingAlgorithm(policy SchedulingPolicy) {
	policy = policy.normalize()
	if s.current != nil && s.current.State == StateRunning {
		logrus.Debugf("[tick %07d] policy switch %s -> %s: demoting process %d", s.clock, s.policy, policy, s.current.ID)
		s.trace.RecordPreempt(trace.PreemptRecord{Clock: s.clock, ProcessID: s.current.ID, Reason: trace.PreemptPolicySwitch})
		s.markReady(s.current)
		s.current = nil
	}
	s.sliceCounter = 0
	s.policy = policy
	s.order = NewReadyOrder(policy)
}

// SetTimeQuantum sets the round-robin quantum. Values below 1 are clamped to 1.
func (s *Scheduler) SetTimeQuantum(n int64) {
	if n < 1 {
		logrus.Warnf("time quantum must be at least 1, got %d; using 1", n)
		n = 1
	}
	s.quantum = n
	if s.policy == PolicyRR && s.current != nil {
		s.sliceCounter = 0
	}
}

// TimeQuantum returns the configured round-robin quantum.
func (s *Scheduler) TimeQuantum() int64 {
	return s.quantum
}

// selectNext returns the first ready process under the active ordering, or nil.
func (s *Scheduler) selectNext() (*Process, int) {
	rq := newReadyQueue(s.processes)
	rq.Reorder(s.order.OrderReady)
	return rq.Peek(), rq.Len()
}

// ExecuteStep advances the simulation by exactly one tick and returns the new state.
//
// Phases, in order:
//  1. If the CPU is free, dispatch the first ready process under the active policy.
//  2. Run the current process for one tick; terminate it at zero remaining time, or
//     preempt it under RR once its quantum is used up.
//  3. Every process still ready accrues one tick of waiting time.
//  4. The clock advances.
func (s *Scheduler) ExecuteStep() SystemState {
	if s.current == nil || s.current.State != StateRunning {
		next, readyLen := s.selectNext()
		s.current = next
		if next != nil {
			next.State = StateRunning
			s.sliceCounter = 0
			logrus.Debugf("[tick %07d] dispatch process %d (%s) under %s", s.clock, next.ID, next.Name, s.policy)
			s.trace.RecordDispatch(trace.DispatchRecord{Clock: s.clock, ProcessID: next.ID, Policy: string(s.policy), ReadyLen: readyLen})
		}
	}

	if p := s.current; p != nil {
		p.RemainingTime--
		s.sliceCounter++

		if p.RemainingTime <= 0 {
			p.RemainingTime = 0
			p.State = StateTerminated
			p.TurnaroundTime = s.clock + 1 - p.ArrivalTime
			logrus.Debugf("[tick %07d] process %d terminated, turnaround=%d waiting=%d", s.clock, p.ID, p.TurnaroundTime, p.WaitingTime)
			s.trace.RecordTermination(trace.TerminationRecord{Clock: s.clock, ProcessID: p.ID, Turnaround: p.TurnaroundTime})
			s.current = nil
			s.sliceCounter = 0
		} else if s.policy == PolicyRR && s.sliceCounter >= s.quantum {
			logrus.Debugf("[tick %07d] quantum expired for process %d, remaining=%d", s.clock, p.ID, p.RemainingTime)
			s.trace.RecordPreempt(trace.PreemptRecord{Clock: s.clock + 1, ProcessID: p.ID, Reason: trace.PreemptQuantum})
			s.markReady(p)
			s.current = nil
			s.sliceCounter = 0
		}
	}

	for _, p := range s.processes {
		if p.State == StateReady {
			p.WaitingTime++
		}
	}

	s.clock++
	return s.State()
}

// RunUntilComplete steps until every process has terminated or maxTicks steps have run.
// It returns the number of ticks executed.
func (s *Scheduler) RunUntilComplete(maxTicks int64) int64 {
	var n int64
	for n < maxTicks && !s.IsAllProcessesCompleted() {
		s.ExecuteStep()
		n++
	}
	return n
}

// Reset restores every process to its admission state and rewinds the clock to 0.
// Processes are kept; their ids and arrival times are unchanged. The trace starts a new run.
func (s *Scheduler) Reset() {
	s.trace.StartRun()
	for _, p := range s.processes {
		s.markReady(p)
		p.RemainingTime = p.BurstTime
		p.WaitingTime = 0
		p.TurnaroundTime = 0
	}
	s.current = nil
	s.clock = 0
	s.sliceCounter = 0
	logrus.Debugf("scheduler reset with %d processes", len(s.processes))
}

// Clear removes every process and rewinds the clock. Process ids are not reused.
func (s *Scheduler) Clear() {
	s.trace.StartRun()
	s.processes = nil
	s.current = nil
	s.clock = 0
	s.sliceCounter = 0
	logrus.Debug("scheduler cleared")
}

// IsAllProcessesCompleted reports whether every process has terminated and the CPU is free.
// An empty process table counts as completed.
func (s *Scheduler) IsAllProcessesCompleted() bool {
	if s.current != nil {
		return false
	}
	for _, p := range s.processes {
		if p.State != StateTerminated {
			return false
		}
	}
	return true
}
