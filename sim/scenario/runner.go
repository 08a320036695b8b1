package scenario

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/mirage-os/mirage-sim/sim"
	"github.com/mirage-os/mirage-sim/sim/memory"
	"github.com/mirage-os/mirage-sim/sim/trace"
)

// RunOptions controls a scenario run.
type RunOptions struct {
	TraceLevel trace.TraceLevel // "" or none disables the decision trace
}

// OpResult records the outcome of one memory operation.
type OpResult struct {
	At        int64
	Op        string
	ProcessID string
	Size      int64
	Start     int64 // -1 on failure
	Success   bool
	Message   string
}

// Run validates spec and drives both engines through it. Admissions and memory operations
// due at tick t are applied before step t. The run ends at the horizon, or, with no
// horizon, once every process has terminated and no later events remain.
func Run(spec *ScenarioSpec, opts RunOptions) (*Report, error) {
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if !trace.IsValidTraceLevel(string(opts.TraceLevel)) {
		return nil, fmt.Errorf("unknown trace level %q", opts.TraceLevel)
	}

	var tr *trace.SimulationTrace
	if opts.TraceLevel == trace.TraceLevelDecisions {
		tr = trace.NewSimulationTrace(trace.TraceConfig{Level: opts.TraceLevel})
	}
	sched := sim.NewScheduler(sim.SchedulerConfig{
		Policy:      sim.ParseSchedulingPolicy(spec.Scheduler.Algorithm),
		TimeQuantum: spec.Scheduler.TimeQuantum,
		Trace:       tr,
	})
	alloc := memory.New(memory.Config{
		TotalSize: spec.Memory.TotalSize,
		Policy:    memory.ParsePlacementPolicy(spec.Memory.Algorithm),
		Trace:     tr,
	})

	procs := make([]ProcessEntry, len(spec.Processes))
	copy(procs, spec.Processes)
	sort.SliceStable(procs, func(i, j int) bool { return procs[i].ArriveAt < procs[j].ArriveAt })
	ops := make([]MemoryOp, len(spec.MemoryOps))
	copy(ops, spec.MemoryOps)
	sort.SliceStable(ops, func(i, j int) bool { return ops[i].At < ops[j].At })

	var results []OpResult
	pi, oi := 0, 0
	for {
		now := sched.Clock()
		if spec.Horizon > 0 && now >= spec.Horizon {
			break
		}
		for ; pi < len(procs) && procs[pi].ArriveAt <= now; pi++ {
			e := procs[pi]
			sched.AddProcess(sim.ProcessSpec{Name: e.Name, BurstTime: e.BurstTime, Priority: e.Priority})
		}
		for ; oi < len(ops) && ops[oi].At <= now; oi++ {
			results = append(results, applyMemoryOp(alloc, ops[oi], now))
		}
		if spec.Horizon == 0 && pi == len(procs) && oi == len(ops) && sched.IsAllProcessesCompleted() {
			break
		}
		sched.ExecuteStep()
	}

	logrus.Infof("scenario finished at tick %d", sched.Clock())
	return &Report{
		Ticks:         sched.Clock(),
		Scheduler:     sched.State(),
		Memory:        alloc.State(),
		MemoryResults: results,
		Trace:         trace.Summarize(tr),
	}, nil
}

func applyMemoryOp(alloc *memory.Allocator, op MemoryOp, now int64) OpResult {
	res := OpResult{At: now, Op: op.Op, ProcessID: op.ProcessID, Size: op.Size, Start: -1}
	switch op.Op {
	case OpAllocate:
		r := alloc.Allocate(op.ProcessID, op.Size)
		res.Success, res.Message = r.Success, r.Message
		if r.Allocation != nil {
			res.Start = r.Allocation.Start
		}
	case OpDeallocate:
		r := alloc.Deallocate(op.ProcessID)
		res.Success, res.Message = r.Success, r.Message
		if r.Freed != nil {
			res.Start, res.Size = r.Freed.Start, r.Freed.Size
		}
	}
	if !res.Success {
		logrus.Debugf("[tick %07d] %s for %q failed: %s", now, op.Op, op.ProcessID, res.Message)
	}
	return res
}
