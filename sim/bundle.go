package sim

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mirage-os/mirage-sim/sim/memory"
	"github.com/mirage-os/mirage-sim/sim/trace"
)

// PolicyBundle holds unified engine configuration, loadable from a YAML file.
// Nil pointer fields mean "not set in YAML"; they do not override CLI flags.
// String fields use empty string for "not set".
type PolicyBundle struct {
	Scheduler   string `yaml:"scheduler"`
	TimeQuantum *int64 `yaml:"time_quantum"`
	Allocator   string `yaml:"allocator"`
	MemorySize  *int64 `yaml:"memory_size"`
	TraceLevel  string `yaml:"trace_level"`
}

// LoadPolicyBundle reads and parses a YAML policy configuration file.
// Unknown keys are rejected so typos surface as errors.
func LoadPolicyBundle(path string) (*PolicyBundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy config: %w", err)
	}
	var bundle PolicyBundle
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&bundle); err != nil {
		return nil, fmt.Errorf("parsing policy config: %w", err)
	}
	return &bundle, nil
}

// Validate checks parameter ranges in the bundle.
// Policy names are not validated: unknown names fall back to the default policy.
func (b *PolicyBundle) Validate() error {
	if b.TimeQuantum != nil && *b.TimeQuantum < 1 {
		return fmt.Errorf("time_quantum must be at least 1, got %d", *b.TimeQuantum)
	}
	if b.MemorySize != nil && *b.MemorySize <= 0 {
		return fmt.Errorf("memory_size must be positive, got %d", *b.MemorySize)
	}
	if !trace.IsValidTraceLevel(b.TraceLevel) {
		return fmt.Errorf("unknown trace level %q", b.TraceLevel)
	}
	return nil
}

// SchedulerConfig builds a SchedulerConfig from the bundle, keeping defaults for unset fields.
func (b *PolicyBundle) SchedulerConfig() SchedulerConfig {
	cfg := SchedulerConfig{Policy: ParseSchedulingPolicy(b.Scheduler)}
	if b.TimeQuantum != nil {
		cfg.TimeQuantum = *b.TimeQuantum
	}
	return cfg
}

// MemoryConfig builds an allocator Config from the bundle, keeping defaults for unset fields.
func (b *PolicyBundle) MemoryConfig() memory.Config {
	cfg := memory.Config{Policy: memory.ParsePlacementPolicy(b.Allocator)}
	if b.MemorySize != nil {
		cfg.TotalSize = *b.MemorySize
	}
	return cfg
}
