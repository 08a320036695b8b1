// Package scenario loads declarative simulation scenarios and drives the scheduler
// and allocator engines through them tick by tick.
package scenario

import (
	"bytes"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Memory operation kinds.
const (
	OpAllocate   = "allocate"
	OpDeallocate = "deallocate"
)

// ScenarioSpec is the top-level scenario configuration.
// Loaded from YAML via LoadScenarioSpec(path).
type ScenarioSpec struct {
	Version   string         `yaml:"version"`
	Scheduler SchedulerSpec  `yaml:"scheduler"`
	Memory    MemorySpec     `yaml:"memory"`
	Processes []ProcessEntry `yaml:"processes"`
	MemoryOps []MemoryOp     `yaml:"memory_ops,omitempty"`
	Horizon   int64          `yaml:"horizon,omitempty"` // 0 = run until every process terminates
}

// SchedulerSpec configures the scheduling engine.
type SchedulerSpec struct {
	Algorithm   string `yaml:"algorithm"`
	TimeQuantum int64  `yaml:"time_quantum,omitempty"` // 0 = engine default
}

// MemorySpec configures the allocation engine.
type MemorySpec struct {
	TotalSize int64  `yaml:"total_size,omitempty"` // 0 = engine default
	Algorithm string `yaml:"algorithm"`
}

// ProcessEntry admits one process at tick ArriveAt.
type ProcessEntry struct {
	Name      string `yaml:"name"`
	BurstTime int64  `yaml:"burst_time"`
	Priority  int64  `yaml:"priority"`
	ArriveAt  int64  `yaml:"arrive_at"`
}

// MemoryOp is an allocation or deallocation request issued at tick At.
type MemoryOp struct {
	At        int64  `yaml:"at"`
	Op        string `yaml:"op"`
	ProcessID string `yaml:"process_id"`
	Size      int64  `yaml:"size,omitempty"` // allocate only
}

var validOps = map[string]bool{
	OpAllocate:   true,
	OpDeallocate: true,
}

// LoadScenarioSpec reads and parses a YAML scenario file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadScenarioSpec(path string) (*ScenarioSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario spec: %w", err)
	}
	var spec ScenarioSpec
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parsing scenario spec: %w", err)
	}
	if spec.Version == "" {
		spec.Version = "1"
	}
	logrus.Debugf("loaded scenario %s: %d processes, %d memory ops", path, len(spec.Processes), len(spec.MemoryOps))
	return &spec, nil
}

// Validate checks that all fields in the spec are valid.
// Algorithm names are not checked; unknown names fall back to the engine defaults.
func (s *ScenarioSpec) Validate() error {
	if s.Version != "" && s.Version != "1" {
		return fmt.Errorf("unsupported scenario version %q", s.Version)
	}
	if s.Horizon < 0 {
		return fmt.Errorf("horizon must be non-negative, got %d", s.Horizon)
	}
	if s.Scheduler.TimeQuantum < 0 {
		return fmt.Errorf("scheduler.time_quantum must be non-negative, got %d", s.Scheduler.TimeQuantum)
	}
	if s.Memory.TotalSize < 0 {
		return fmt.Errorf("memory.total_size must be non-negative, got %d", s.Memory.TotalSize)
	}
	for i, p := range s.Processes {
		prefix := fmt.Sprintf("processes[%d]", i)
		if p.BurstTime <= 0 {
			return fmt.Errorf("%s: burst_time must be positive, got %d", prefix, p.BurstTime)
		}
		if p.ArriveAt < 0 {
			return fmt.Errorf("%s: arrive_at must be non-negative, got %d", prefix, p.ArriveAt)
		}
	}
	for i, op := range s.MemoryOps {
		if err := validateMemoryOp(&op, i); err != nil {
			return err
		}
	}
	return nil
}

func validateMemoryOp(op *MemoryOp, idx int) error {
	prefix := fmt.Sprintf("memory_ops[%d]", idx)
	if !validOps[op.Op] {
		return fmt.Errorf("%s: unknown op %q; valid: allocate, deallocate", prefix, op.Op)
	}
	if op.At < 0 {
		return fmt.Errorf("%s: at must be non-negative, got %d", prefix, op.At)
	}
	if op.ProcessID == "" {
		return fmt.Errorf("%s: process_id is required", prefix)
	}
	if op.Op == OpAllocate && op.Size <= 0 {
		return fmt.Errorf("%s: size must be positive, got %d", prefix, op.Size)
	}
	return nil
}
