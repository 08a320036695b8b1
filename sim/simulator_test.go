package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirage-os/mirage-sim/sim/trace"
)

// runTicks steps the scheduler n times and returns the id of the process that ran
// during each tick (0 when the CPU was idle).
func runTicks(s *Scheduler, n int) []int64 {
	ran := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		before := make(map[int64]int64, len(s.processes))
		for _, p := range s.processes {
			before[p.ID] = p.RemainingTime
		}
		s.ExecuteStep()
		var id int64
		for _, p := range s.processes {
			if p.RemainingTime < before[p.ID] {
				id = p.ID
			}
		}
		ran = append(ran, id)
	}
	return ran
}

func addAll(s *Scheduler, specs ...ProcessSpec) {
	for _, spec := range specs {
		s.AddProcess(spec)
	}
}

func TestNewScheduler_Defaults(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})

	assert.Equal(t, PolicyFCFS, s.Policy())
	assert.Equal(t, int64(DefaultTimeQuantum), s.TimeQuantum())
	assert.Equal(t, int64(0), s.Clock())
	assert.True(t, s.IsAllProcessesCompleted(), "empty scheduler counts as completed")
}

func TestAddProcess_InitialFields(t *testing.T) {
	// GIVEN a scheduler that has already advanced two idle ticks
	s := NewScheduler(SchedulerConfig{})
	s.ExecuteStep()
	s.ExecuteStep()

	// WHEN a process is admitted
	p := s.AddProcess(ProcessSpec{Name: "init", BurstTime: 4, Priority: 2})

	// THEN its dynamic fields start from the admission tick
	assert.Equal(t, int64(1), p.ID)
	assert.Equal(t, "init", p.Name)
	assert.Equal(t, int64(2), p.ArrivalTime)
	assert.Equal(t, int64(4), p.RemainingTime)
	assert.Equal(t, StateReady, p.State)
	assert.Equal(t, int64(0), p.WaitingTime)
	assert.Equal(t, int64(0), p.TurnaroundTime)
}

func TestExecuteStep_NoProcesses_OnlyAdvancesClock(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})

	state := s.ExecuteStep()

	assert.Equal(t, int64(1), state.CurrentTime)
	assert.Nil(t, state.CurrentProcess)
	assert.Empty(t, state.Processes)
}

func TestExecuteStep_FCFS_FirstAdmittedRunsToCompletion(t *testing.T) {
	// GIVEN three processes admitted at tick 0 with bursts 5, 3, 8 under FCFS
	s := NewScheduler(SchedulerConfig{Policy: PolicyFCFS})
	addAll(s,
		ProcessSpec{Name: "A", BurstTime: 5},
		ProcessSpec{Name: "B", BurstTime: 3},
		ProcessSpec{Name: "C", BurstTime: 8},
	)

	// WHEN the simulation runs to completion
	ran := runTicks(s, 16)

	// THEN A holds the CPU for ticks 0-4 before anyone else runs
	want := []int64{1, 1, 1, 1, 1, 2, 2, 2, 3, 3, 3, 3, 3, 3, 3, 3}
	assert.Equal(t, want, ran)
	require.True(t, s.IsAllProcessesCompleted())

	state := s.State()
	waits := []int64{0, 5, 8}
	turnarounds := []int64{5, 8, 16}
	for i, p := range state.Processes {
		assert.Equal(t, StateTerminated, p.State)
		assert.Equal(t, waits[i], p.WaitingTime, "waiting time of %s", p.Name)
		assert.Equal(t, turnarounds[i], p.TurnaroundTime, "turnaround of %s", p.Name)
	}
	assert.Equal(t, 3, state.Stats.CompletedProcesses)
	assert.InDelta(t, 13.0/3.0, state.Stats.AverageWaitingTime, 1e-9)
	assert.InDelta(t, 29.0/3.0, state.Stats.AverageTurnaroundTime, 1e-9)
}

func TestExecuteStep_FCFS_RunningProcessVisibleInState(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})
	addAll(s, ProcessSpec{Name: "A", BurstTime: 3}, ProcessSpec{Name: "B", BurstTime: 1})

	state := s.ExecuteStep()

	require.NotNil(t, state.CurrentProcess)
	assert.Equal(t, int64(1), state.CurrentProcess.ID)
	assert.Equal(t, StateRunning, state.CurrentProcess.State)
	assert.Equal(t, int64(2), state.CurrentProcess.RemainingTime)
	assert.Equal(t, int64(1), state.TimeSliceCounter)
}

func TestExecuteStep_TerminationAccounting(t *testing.T) {
	// GIVEN a single process with burst 3 admitted at tick 0
	s := NewScheduler(SchedulerConfig{})
	s.AddProcess(ProcessSpec{Name: "solo", BurstTime: 3})

	// WHEN stepping twice THEN it is still running
	s.ExecuteStep()
	state := s.ExecuteStep()
	assert.Equal(t, StateRunning, state.Processes[0].State)
	assert.Equal(t, int64(1), state.Processes[0].RemainingTime)

	// WHEN the third decrement happens THEN it terminates with turnaround 3
	state = s.ExecuteStep()
	assert.Equal(t, StateTerminated, state.Processes[0].State)
	assert.Equal(t, int64(0), state.Processes[0].RemainingTime)
	assert.Equal(t, int64(3), state.Processes[0].TurnaroundTime)
	assert.Nil(t, state.CurrentProcess)
	assert.True(t, state.IsCompleted)
}

func TestExecuteStep_TurnaroundSubtractsArrival(t *testing.T) {
	// GIVEN a process admitted at tick 2
	s := NewScheduler(SchedulerConfig{})
	s.ExecuteStep()
	s.ExecuteStep()
	s.AddProcess(ProcessSpec{Name: "late", BurstTime: 3})

	// WHEN it runs to completion
	s.RunUntilComplete(10)

	// THEN turnaround counts from arrival, not from tick 0
	p, ok := s.Process(1)
	require.True(t, ok)
	assert.Equal(t, int64(3), p.TurnaroundTime)
	assert.Equal(t, int64(5), s.Clock())
}

func TestExecuteStep_TerminatedProcessNeverChanges(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})
	addAll(s, ProcessSpec{Name: "short", BurstTime: 1}, ProcessSpec{Name: "long", BurstTime: 4})
	s.ExecuteStep()
	done, _ := s.Process(1)

	runTicks(s, 6)

	after, _ := s.Process(1)
	assert.Equal(t, done, after)
}

func TestExecuteStep_RoundRobin_FairnessBound(t *testing.T) {
	// GIVEN quantum 2 and three processes with burst 4
	s := NewScheduler(SchedulerConfig{Policy: PolicyRR, TimeQuantum: 2})
	addAll(s,
		ProcessSpec{Name: "A", BurstTime: 4},
		ProcessSpec{Name: "B", BurstTime: 4},
		ProcessSpec{Name: "C", BurstTime: 4},
	)

	// WHEN the simulation runs to completion
	ran := runTicks(s, 12)

	// THEN processes alternate in turns of at most 2 ticks
	want := []int64{1, 1, 2, 2, 3, 3, 1, 1, 2, 2, 3, 3}
	assert.Equal(t, want, ran)
	streak := 1
	for i := 1; i < len(ran); i++ {
		if ran[i] == ran[i-1] {
			streak++
		} else {
			streak = 1
		}
		assert.LessOrEqual(t, streak, 2, "process %d ran more than a quantum at tick %d", ran[i], i)
	}

	stats := s.Stats()
	assert.Equal(t, 3, stats.CompletedProcesses)
	// a process preempted at the end of a tick is ready for that tick's waiting pass
	assert.InDelta(t, 7.0, stats.AverageWaitingTime, 1e-9)
	assert.InDelta(t, 10.0, stats.AverageTurnaroundTime, 1e-9)
}

func TestExecuteStep_RoundRobin_SoleProcessIsRedispatched(t *testing.T) {
	// A preempted process with no competition is picked again on the next tick
	s := NewScheduler(SchedulerConfig{Policy: PolicyRR, TimeQuantum: 1})
	s.AddProcess(ProcessSpec{Name: "solo", BurstTime: 3})

	ran := runTicks(s, 3)

	assert.Equal(t, []int64{1, 1, 1}, ran)
	p, _ := s.Process(1)
	assert.Equal(t, int64(2), p.WaitingTime, "each preemption leaves the process ready for one waiting pass")
	assert.Equal(t, int64(3), p.TurnaroundTime)
}

func TestExecuteStep_SJF_ShortestBurstFirst(t *testing.T) {
	s := NewScheduler(SchedulerConfig{Policy: PolicySJF})
	addAll(s,
		ProcessSpec{Name: "long", BurstTime: 5},
		ProcessSpec{Name: "mid", BurstTime: 4},
	)

	// mid is chosen first and keeps the CPU when a shorter job arrives at tick 1
	ran := runTicks(s, 1)
	s.AddProcess(ProcessSpec{Name: "tiny", BurstTime: 1})
	ran = append(ran, runTicks(s, 9)...)

	want := []int64{2, 2, 2, 2, 3, 1, 1, 1, 1, 1}
	assert.Equal(t, want, ran)
}

func TestExecuteStep_Priority_HighestFirst(t *testing.T) {
	s := NewScheduler(SchedulerConfig{Policy: PolicyPriority})
	addAll(s,
		ProcessSpec{Name: "low", BurstTime: 2, Priority: 1},
		ProcessSpec{Name: "high", BurstTime: 2, Priority: 5},
		ProcessSpec{Name: "mid", BurstTime: 2, Priority: 3},
	)

	ran := runTicks(s, 6)

	assert.Equal(t, []int64{2, 2, 3, 3, 1, 1}, ran)
}

func TestSetSchedulingAlgorithm_DemotesRunningProcess(t *testing.T) {
	// GIVEN A running under FCFS
	s := NewScheduler(SchedulerConfig{})
	addAll(s, ProcessSpec{Name: "A", BurstTime: 5}, ProcessSpec{Name: "B", BurstTime: 2})
	runTicks(s, 2)

	// WHEN the policy switches to SJF
	s.SetSchedulingAlgorithm(PolicySJF)

	// THEN A is back in the ready pool and the slot is empty
	state := s.State()
	assert.Nil(t, state.CurrentProcess)
	assert.Equal(t, StateReady, state.Processes[0].State)
	assert.Equal(t, int64(3), state.Processes[0].RemainingTime)
	assert.Equal(t, int64(0), state.TimeSliceCounter)

	// AND the next dispatch follows the new policy
	ran := runTicks(s, 1)
	assert.Equal(t, []int64{2}, ran)
}

func TestSetSchedulingAlgorithm_UnknownFallsBackToFCFS(t *testing.T) {
	// GIVEN two identical workloads, one configured with an unrecognized policy name
	build := func() *Scheduler {
		s := NewScheduler(SchedulerConfig{Policy: PolicyPriority})
		addAll(s,
			ProcessSpec{Name: "A", BurstTime: 3, Priority: 1},
			ProcessSpec{Name: "B", BurstTime: 1, Priority: 9},
			ProcessSpec{Name: "C", BurstTime: 2, Priority: 4},
		)
		return s
	}
	fallback := build()
	fallback.SetSchedulingAlgorithm(ParseSchedulingPolicy("lottery"))
	explicit := build()
	explicit.SetSchedulingAlgorithm(PolicyFCFS)

	// WHEN both run to completion
	fallback.RunUntilComplete(20)
	explicit.RunUntilComplete(20)

	// THEN they are indistinguishable
	assert.Equal(t, explicit.State(), fallback.State())
	assert.Equal(t, PolicyFCFS, fallback.Policy())
}

func TestSetSchedulingAlgorithm_UnconvertedValueNormalized(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})
	s.SetSchedulingAlgorithm(SchedulingPolicy("MLFQ"))
	assert.Equal(t, PolicyFCFS, s.Policy())
}

func TestSetTimeQuantum_ResetsSliceCounter(t *testing.T) {
	// GIVEN A has used one tick of a 2-tick quantum
	s := NewScheduler(SchedulerConfig{Policy: PolicyRR, TimeQuantum: 2})
	addAll(s, ProcessSpec{Name: "A", BurstTime: 10}, ProcessSpec{Name: "B", BurstTime: 10})
	ran := runTicks(s, 1)

	// WHEN the quantum is raised to 3
	s.SetTimeQuantum(3)

	// THEN A gets a fresh 3-tick slice
	ran = append(ran, runTicks(s, 6)...)
	assert.Equal(t, []int64{1, 1, 1, 1, 2, 2, 2}, ran)
}

func TestSetTimeQuantum_ClampsToOne(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})
	s.SetTimeQuantum(0)
	assert.Equal(t, int64(1), s.TimeQuantum())
}

func TestRemoveProcess_RunningClearsSlot(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})
	addAll(s, ProcessSpec{Name: "A", BurstTime: 5}, ProcessSpec{Name: "B", BurstTime: 2})
	runTicks(s, 1)

	s.RemoveProcess(1)

	state := s.State()
	assert.Nil(t, state.CurrentProcess)
	assert.Len(t, state.Processes, 1)
	assert.Equal(t, int64(0), state.TimeSliceCounter)
	assert.Equal(t, []int64{2}, runTicks(s, 1))
}

func TestRemoveProcess_AbsentIsNoOp(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})
	s.AddProcess(ProcessSpec{Name: "A", BurstTime: 5})
	before := s.State()

	s.RemoveProcess(42)

	assert.Equal(t, before, s.State())
}

func TestReset_RestoresProcessesAndClock(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})
	addAll(s, ProcessSpec{Name: "A", BurstTime: 2}, ProcessSpec{Name: "B", BurstTime: 3})
	runTicks(s, 4)

	s.Reset()

	state := s.State()
	assert.Equal(t, int64(0), state.CurrentTime)
	assert.Nil(t, state.CurrentProcess)
	require.Len(t, state.Processes, 2)
	for _, p := range state.Processes {
		assert.Equal(t, StateReady, p.State)
		assert.Equal(t, p.BurstTime, p.RemainingTime)
		assert.Equal(t, int64(0), p.WaitingTime)
		assert.Equal(t, int64(0), p.TurnaroundTime)
	}
	assert.Equal(t, 0, state.Stats.CompletedProcesses)
}

func TestClear_RemovesProcessesWithoutReusingIDs(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})
	addAll(s, ProcessSpec{Name: "A", BurstTime: 2}, ProcessSpec{Name: "B", BurstTime: 3})
	runTicks(s, 1)

	s.Clear()
	p := s.AddProcess(ProcessSpec{Name: "C", BurstTime: 1})

	assert.Equal(t, int64(3), p.ID)
	assert.Equal(t, int64(0), p.ArrivalTime)
	assert.Len(t, s.State().Processes, 1)
}

func TestStats_NoTerminatedProcesses_ZeroMeans(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})
	s.AddProcess(ProcessSpec{Name: "A", BurstTime: 5})
	runTicks(s, 2)

	stats := s.Stats()

	assert.Equal(t, 0, stats.CompletedProcesses)
	assert.Equal(t, 1, stats.TotalProcesses)
	assert.Equal(t, 0.0, stats.AverageWaitingTime)
	assert.Equal(t, 0.0, stats.AverageTurnaroundTime)
}

func TestState_SnapshotIsDetached(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})
	s.AddProcess(ProcessSpec{Name: "A", BurstTime: 5})
	state := s.ExecuteStep()

	state.Processes[0].Name = "mutated"
	state.CurrentProcess.RemainingTime = 99

	p, _ := s.Process(1)
	assert.Equal(t, "A", p.Name)
	assert.Equal(t, int64(4), p.RemainingTime)
}

func TestRunUntilComplete_RespectsTickBudget(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})
	s.AddProcess(ProcessSpec{Name: "A", BurstTime: 100})

	n := s.RunUntilComplete(10)

	assert.Equal(t, int64(10), n)
	assert.False(t, s.IsAllProcessesCompleted())
}

func TestScheduler_Trace_BuildsTimeline(t *testing.T) {
	// GIVEN a traced RR scheduler
	st := trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelDecisions})
	s := NewScheduler(SchedulerConfig{Policy: PolicyRR, TimeQuantum: 2, Trace: st})
	addAll(s,
		ProcessSpec{Name: "A", BurstTime: 4},
		ProcessSpec{Name: "B", BurstTime: 4},
		ProcessSpec{Name: "C", BurstTime: 4},
	)

	// WHEN it runs to completion
	s.RunUntilComplete(100)

	// THEN the timeline mirrors the RR rotation
	summary := trace.Summarize(st)
	want := []trace.Segment{
		{ProcessID: 1, Start: 0, End: 2},
		{ProcessID: 2, Start: 2, End: 4},
		{ProcessID: 3, Start: 4, End: 6},
		{ProcessID: 1, Start: 6, End: 8},
		{ProcessID: 2, Start: 8, End: 10},
		{ProcessID: 3, Start: 10, End: 12},
	}
	assert.Equal(t, want, summary.Timeline)
	assert.Equal(t, 3, summary.PreemptionsByCause[trace.PreemptQuantum])
	assert.Equal(t, 3, summary.TerminationCount)
}

func TestScheduler_Reset_TraceCoversOnlyNewRun(t *testing.T) {
	// GIVEN a traced FCFS run that has completed
	st := trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelDecisions})
	s := NewScheduler(SchedulerConfig{Trace: st})
	addAll(s,
		ProcessSpec{Name: "A", BurstTime: 3},
		ProcessSpec{Name: "B", BurstTime: 1},
	)
	s.RunUntilComplete(100)

	// WHEN the scheduler is reset and run again
	s.Reset()
	s.RunUntilComplete(100)

	// THEN the timeline shows the second run alone
	summary := trace.Summarize(st)
	want := []trace.Segment{
		{ProcessID: 1, Start: 0, End: 3},
		{ProcessID: 2, Start: 3, End: 4},
	}
	assert.Equal(t, want, summary.Timeline)
	assert.Equal(t, 2, summary.TerminationCount)
}

func TestScheduler_Clear_DropsSchedulingRecords(t *testing.T) {
	st := trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelDecisions})
	s := NewScheduler(SchedulerConfig{Trace: st})
	s.AddProcess(ProcessSpec{Name: "A", BurstTime: 2})
	s.ExecuteStep()

	s.Clear()

	assert.Empty(t, st.Dispatches)
	assert.Empty(t, trace.Summarize(st).Timeline)
}
