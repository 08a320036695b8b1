package trace

// TraceLevel controls the verbosity of decision tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelDecisions captures every dispatch, preemption, termination and memory decision.
	TraceLevelDecisions TraceLevel = "decisions"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelDecisions: true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// SimulationTrace collects decision records during a simulation.
// A nil *SimulationTrace is valid and records nothing.
type SimulationTrace struct {
	Config        TraceConfig
	Dispatches    []DispatchRecord
	Preemptions   []PreemptRecord
	Terminations  []TerminationRecord
	Allocations   []AllocationRecord
	Deallocations []DeallocationRecord
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:        config,
		Dispatches:    make([]DispatchRecord, 0),
		Preemptions:   make([]PreemptRecord, 0),
		Terminations:  make([]TerminationRecord, 0),
		Allocations:   make([]AllocationRecord, 0),
		Deallocations: make([]DeallocationRecord, 0),
	}
}

func (st *SimulationTrace) enabled() bool {
	return st != nil && st.Config.Level == TraceLevelDecisions
}

// RecordDispatch appends a dispatch decision record.
func (st *SimulationTrace) RecordDispatch(record DispatchRecord) {
	if st.enabled() {
		st.Dispatches = append(st.Dispatches, record)
	}
}

// RecordPreempt appends a preemption record.
func (st *SimulationTrace) RecordPreempt(record PreemptRecord) {
	if st.enabled() {
		st.Preemptions = append(st.Preemptions, record)
	}
}

// RecordTermination appends a termination record.
func (st *SimulationTrace) RecordTermination(record TerminationRecord) {
	if st.enabled() {
		st.Terminations = append(st.Terminations, record)
	}
}

// RecordAllocation appends an allocation decision record.
func (st *SimulationTrace) RecordAllocation(record AllocationRecord) {
	if st.enabled() {
		st.Allocations = append(st.Allocations, record)
	}
}

// RecordDeallocation appends a deallocation record.
func (st *SimulationTrace) RecordDeallocation(record DeallocationRecord) {
	if st.enabled() {
		st.Deallocations = append(st.Deallocations, record)
	}
}

// StartRun discards the scheduling records so the timeline covers only the run that
// begins at clock 0. Memory records are kept; the allocator has no clock to rewind.
func (st *SimulationTrace) StartRun() {
	if st == nil {
		return
	}
	st.Dispatches = st.Dispatches[:0]
	st.Preemptions = st.Preemptions[:0]
	st.Terminations = st.Terminations[:0]
}
