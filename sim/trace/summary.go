package trace

import "sort"

// Segment is one contiguous stretch of CPU time held by a process, [Start, End).
type Segment struct {
	ProcessID int64
	Start     int64
	End       int64
}

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	DispatchCount      int
	PreemptionCount    int
	TerminationCount   int
	AllocationSuccess  int
	AllocationFailure  int
	DeallocationCount  int
	ContextSwitches    int                   // dispatches that changed the process holding the CPU
	Timeline           []Segment             // Gantt chart of CPU occupancy
	PreemptionsByCause map[PreemptReason]int // reason → count
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		PreemptionsByCause: make(map[PreemptReason]int),
	}
	if st == nil {
		return summary
	}

	summary.DispatchCount = len(st.Dispatches)
	summary.PreemptionCount = len(st.Preemptions)
	summary.TerminationCount = len(st.Terminations)
	for _, p := range st.Preemptions {
		summary.PreemptionsByCause[p.Reason]++
	}
	for _, a := range st.Allocations {
		if a.Success {
			summary.AllocationSuccess++
		} else {
			summary.AllocationFailure++
		}
	}
	for _, d := range st.Deallocations {
		if d.Success {
			summary.DeallocationCount++
		}
	}

	summary.Timeline = buildTimeline(st)
	for i, seg := range summary.Timeline {
		if i == 0 || summary.Timeline[i-1].ProcessID != seg.ProcessID {
			summary.ContextSwitches++
		}
	}
	return summary
}

// buildTimeline pairs every dispatch with the next preemption or termination of the same
// process. A dispatch with no closing record is still running and is left out.
func buildTimeline(st *SimulationTrace) []Segment {
	type closing struct {
		clock int64
		used  bool
	}
	ends := make(map[int64][]*closing)
	for _, p := range st.Preemptions {
		ends[p.ProcessID] = append(ends[p.ProcessID], &closing{clock: p.Clock})
	}
	for _, t := range st.Terminations {
		ends[t.ProcessID] = append(ends[t.ProcessID], &closing{clock: t.Clock + 1})
	}
	for _, list := range ends {
		sort.SliceStable(list, func(i, j int) bool { return list[i].clock < list[j].clock })
	}

	timeline := make([]Segment, 0, len(st.Dispatches))
	for _, d := range st.Dispatches {
		for _, c := range ends[d.ProcessID] {
			if c.used || c.clock <= d.Clock {
				continue
			}
			c.used = true
			timeline = append(timeline, Segment{ProcessID: d.ProcessID, Start: d.Clock, End: c.clock})
			break
		}
	}
	sort.SliceStable(timeline, func(i, j int) bool { return timeline[i].Start < timeline[j].Start })
	return timeline
}
