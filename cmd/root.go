package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mirage-os/mirage-sim/sim"
	"github.com/mirage-os/mirage-sim/sim/memory"
	"github.com/mirage-os/mirage-sim/sim/scenario"
	"github.com/mirage-os/mirage-sim/sim/trace"
)

var (
	logLevel         string // Log verbosity level
	defaultsFilePath string // Path to defaults.yaml
	policyConfigPath string // Path to a policy bundle YAML

	// Engine flags, shared by run and serve
	schedulerName string // Scheduling policy name
	timeQuantum   int64  // Round-robin quantum (ticks)
	allocatorName string // Placement policy name
	memorySize    int64  // Address-space size
	traceLevel    string // Decision trace level

	// Scenario flags
	scenarioPath string // Path to a scenario YAML
	presetName   string // Named preset from defaults.yaml
	horizon      int64  // Tick limit overriding the scenario's
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:          "mirage-sim",
	Short:        "Educational CPU scheduling and memory allocation simulator",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
	},
}

// runCmd executes a scenario and prints its report
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a scheduling and allocation scenario",
	Run: func(cmd *cobra.Command, args []string) {
		defaults, err := loadDefaultsConfig(defaultsFilePath, cmd.Flags().Changed("defaults"))
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		var spec *scenario.ScenarioSpec
		switch {
		case scenarioPath != "" && presetName != "":
			logrus.Fatalf("--scenario and --preset are mutually exclusive")
		case scenarioPath != "":
			if spec, err = scenario.LoadScenarioSpec(scenarioPath); err != nil {
				logrus.Fatalf("%v", err)
			}
		case presetName != "":
			var ok bool
			if spec, ok = defaults.preset(presetName); !ok {
				logrus.Fatalf("Unknown preset %q. Check %s for available presets.", presetName, defaultsFilePath)
			}
		default:
			logrus.Fatalf("one of --scenario or --preset is required")
		}

		base, err := baseBundle(defaults)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		applyBundleToScenario(spec, base, false)
		flags := sim.PolicyBundle{}
		applyEngineFlags(cmd, &flags)
		applyBundleToScenario(spec, &flags, true)
		if cmd.Flags().Changed("horizon") {
			spec.Horizon = horizon
		}

		level := trace.TraceLevel(traceLevel)
		if !cmd.Flags().Changed("trace-level") && base.TraceLevel != "" {
			level = trace.TraceLevel(base.TraceLevel)
		}

		logrus.Infof("Starting scenario: scheduler=%s quantum=%d allocator=%s memory=%d processes=%d",
			spec.Scheduler.Algorithm, spec.Scheduler.TimeQuantum, spec.Memory.Algorithm, spec.Memory.TotalSize, len(spec.Processes))
		report, err := scenario.Run(spec, scenario.RunOptions{TraceLevel: level})
		if err != nil {
			logrus.Fatalf("Scenario failed: %v", err)
		}
		report.Print(cmd.OutOrStdout())
		logrus.Info("Simulation complete.")
	},
}

// baseBundle layers the policy config file over the defaults.yaml engine section.
func baseBundle(defaults *DefaultsConfig) (*sim.PolicyBundle, error) {
	bundle := defaults.Engine
	if policyConfigPath != "" {
		b, err := sim.LoadPolicyBundle(policyConfigPath)
		if err != nil {
			return nil, err
		}
		if err := b.Validate(); err != nil {
			return nil, err
		}
		mergeBundle(&bundle, b)
	}
	return &bundle, nil
}

// mergeBundle overlays the fields set in src onto dst.
func mergeBundle(dst, src *sim.PolicyBundle) {
	if src.Scheduler != "" {
		dst.Scheduler = src.Scheduler
	}
	if src.TimeQuantum != nil {
		dst.TimeQuantum = src.TimeQuantum
	}
	if src.Allocator != "" {
		dst.Allocator = src.Allocator
	}
	if src.MemorySize != nil {
		dst.MemorySize = src.MemorySize
	}
	if src.TraceLevel != "" {
		dst.TraceLevel = src.TraceLevel
	}
}

// applyEngineFlags copies explicitly set engine flags into b. Unset flags leave b unchanged.
func applyEngineFlags(cmd *cobra.Command, b *sim.PolicyBundle) {
	if cmd.Flags().Changed("scheduler") {
		b.Scheduler = schedulerName
	}
	if cmd.Flags().Changed("time-quantum") {
		q := timeQuantum
		b.TimeQuantum = &q
	}
	if cmd.Flags().Changed("allocator") {
		b.Allocator = allocatorName
	}
	if cmd.Flags().Changed("memory-size") {
		m := memorySize
		b.MemorySize = &m
	}
	if cmd.Flags().Changed("trace-level") {
		b.TraceLevel = traceLevel
	}
}

// applyBundleToScenario copies bundle settings into spec. With override unset, only
// fields the scenario leaves empty are filled.
func applyBundleToScenario(spec *scenario.ScenarioSpec, b *sim.PolicyBundle, override bool) {
	if b.Scheduler != "" && (override || spec.Scheduler.Algorithm == "") {
		spec.Scheduler.Algorithm = b.Scheduler
	}
	if b.TimeQuantum != nil && (override || spec.Scheduler.TimeQuantum == 0) {
		spec.Scheduler.TimeQuantum = *b.TimeQuantum
	}
	if b.Allocator != "" && (override || spec.Memory.Algorithm == "") {
		spec.Memory.Algorithm = b.Allocator
	}
	if b.MemorySize != nil && (override || spec.Memory.TotalSize == 0) {
		spec.Memory.TotalSize = *b.MemorySize
	}
}

func addEngineFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&schedulerName, "scheduler", string(sim.PolicyFCFS), "Scheduling policy (FCFS, SJF, Priority, RR)")
	cmd.Flags().Int64Var(&timeQuantum, "time-quantum", sim.DefaultTimeQuantum, "Round-robin time quantum (ticks)")
	cmd.Flags().StringVar(&allocatorName, "allocator", string(memory.FirstFit), "Placement policy (FirstFit, BestFit, WorstFit)")
	cmd.Flags().Int64Var(&memorySize, "memory-size", memory.DefaultTotalSize, "Total memory size")
	cmd.Flags().StringVar(&policyConfigPath, "policy-config", "", "Path to policy bundle YAML (scheduler, time_quantum, allocator, memory_size, trace_level)")
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&defaultsFilePath, "defaults", "defaults.yaml", "Path to defaults.yaml")

	addEngineFlags(runCmd)
	runCmd.Flags().StringVar(&traceLevel, "trace-level", string(trace.TraceLevelDecisions), "Decision trace level (none, decisions)")
	runCmd.Flags().StringVar(&scenarioPath, "scenario", "", "Path to scenario YAML")
	runCmd.Flags().StringVar(&presetName, "preset", "", "Named scenario preset from defaults.yaml")
	runCmd.Flags().Int64Var(&horizon, "horizon", 0, "Stop after this many ticks (0 = run to completion)")

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}
