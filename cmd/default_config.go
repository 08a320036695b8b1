package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mirage-os/mirage-sim/sim"
	"github.com/mirage-os/mirage-sim/sim/scenario"
)

// DefaultsConfig represents the full defaults.yaml structure.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type DefaultsConfig struct {
	Version string                           `yaml:"version"`
	Engine  sim.PolicyBundle                 `yaml:"engine"`
	Server  ServerDefaults                   `yaml:"server"`
	Presets map[string]scenario.ScenarioSpec `yaml:"presets"`
}

// ServerDefaults configures `mirage-sim serve` when its flags are not given.
type ServerDefaults struct {
	Addr             string `yaml:"addr"`
	SubscriberBuffer int    `yaml:"subscriber_buffer"`
	KeepAliveSeconds int    `yaml:"keep_alive_seconds"`
}

// loadDefaultsConfig parses defaults.yaml into a DefaultsConfig.
// Uses strict field checking. A missing file yields an empty config unless required is set.
func loadDefaultsConfig(path string, required bool) (*DefaultsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return &DefaultsConfig{}, nil
		}
		return nil, fmt.Errorf("reading defaults file %s: %w", path, err)
	}
	var cfg DefaultsConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing defaults file %s: %w", path, err)
	}
	if err := cfg.Engine.Validate(); err != nil {
		return nil, fmt.Errorf("defaults file %s: engine: %w", path, err)
	}
	return &cfg, nil
}

// preset returns a copy of the named scenario preset.
func (c *DefaultsConfig) preset(name string) (*scenario.ScenarioSpec, bool) {
	spec, ok := c.Presets[name]
	if !ok {
		return nil, false
	}
	spec.Processes = append([]scenario.ProcessEntry(nil), spec.Processes...)
	spec.MemoryOps = append([]scenario.MemoryOp(nil), spec.MemoryOps...)
	return &spec, true
}
