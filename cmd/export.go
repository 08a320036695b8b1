package cmd

import (
	"fmt"
	"io"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mirage-os/mirage-sim/sim/scenario"
)

var exportPresetName string

// exportCmd writes a defaults.yaml preset as a standalone scenario file.
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a named preset as scenario YAML",
	Long:  "Export a scenario preset from defaults.yaml as a standalone scenario YAML file. Output is written to stdout for piping. Without --preset, lists the available presets.",
	Run: func(cmd *cobra.Command, args []string) {
		defaults, err := loadDefaultsConfig(defaultsFilePath, true)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if exportPresetName == "" {
			names := make([]string, 0, len(defaults.Presets))
			for name := range defaults.Presets {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return
		}
		spec, ok := defaults.preset(exportPresetName)
		if !ok {
			logrus.Fatalf("Unknown preset %q. Check %s for available presets.", exportPresetName, defaultsFilePath)
		}
		if err := spec.Validate(); err != nil {
			logrus.Fatalf("Preset %q is invalid: %v", exportPresetName, err)
		}
		if err := writeSpec(cmd.OutOrStdout(), spec); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

// writeSpec marshals a ScenarioSpec to YAML.
func writeSpec(w io.Writer, spec *scenario.ScenarioSpec) error {
	data, err := yaml.Marshal(spec)
	if err != nil {
		return fmt.Errorf("YAML marshal failed: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func init() {
	exportCmd.Flags().StringVar(&exportPresetName, "preset", "", "Preset name from defaults.yaml")

	rootCmd.AddCommand(exportCmd)
}
