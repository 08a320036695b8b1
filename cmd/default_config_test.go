package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirage-os/mirage-sim/sim/scenario"
)

func writeDefaults(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "defaults.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaultsConfig_RepoDefaults(t *testing.T) {
	// GIVEN the defaults.yaml shipped at the repo root
	cfg, err := loadDefaultsConfig("../defaults.yaml", true)

	// THEN it parses strictly and every preset is a valid scenario
	require.NoError(t, err)
	assert.Equal(t, "FCFS", cfg.Engine.Scheduler)
	assert.Equal(t, ":3000", cfg.Server.Addr)
	require.NotEmpty(t, cfg.Presets)
	for name := range cfg.Presets {
		spec, ok := cfg.preset(name)
		require.True(t, ok)
		assert.NoError(t, spec.Validate(), "preset %s", name)
	}
}

func TestLoadDefaultsConfig_UnknownKey_Rejected(t *testing.T) {
	path := writeDefaults(t, `
engine:
  schedular: RR
`)

	_, err := loadDefaultsConfig(path, true)

	assert.Error(t, err)
}

func TestLoadDefaultsConfig_InvalidEngine_Rejected(t *testing.T) {
	path := writeDefaults(t, `
engine:
  time_quantum: 0
`)

	_, err := loadDefaultsConfig(path, true)

	assert.Error(t, err)
}

func TestLoadDefaultsConfig_Missing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.yaml")

	// optional: empty config
	cfg, err := loadDefaultsConfig(missing, false)
	require.NoError(t, err)
	assert.Empty(t, cfg.Presets)
	assert.Equal(t, "", cfg.Engine.Scheduler)

	// required: error
	_, err = loadDefaultsConfig(missing, true)
	assert.Error(t, err)
}

func TestDefaultsConfig_Preset_ReturnsIndependentCopy(t *testing.T) {
	cfg := &DefaultsConfig{Presets: map[string]scenario.ScenarioSpec{
		"p": {Processes: []scenario.ProcessEntry{{Name: "a", BurstTime: 1}}},
	}}

	spec, ok := cfg.preset("p")
	require.True(t, ok)
	spec.Processes[0].Name = "mutated"
	spec.Scheduler.Algorithm = "RR"

	assert.Equal(t, "a", cfg.Presets["p"].Processes[0].Name)
	assert.Equal(t, "", cfg.Presets["p"].Scheduler.Algorithm)

	_, ok = cfg.preset("missing")
	assert.False(t, ok)
}
