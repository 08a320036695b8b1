package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mirage-os/mirage-sim/client"
	"github.com/mirage-os/mirage-sim/server"
	"github.com/mirage-os/mirage-sim/sim"
)

var (
	serverURL       string
	ctlName         string
	ctlBurst        int64
	ctlPriority     int64
	ctlSteps        int
	ctlWatchUpdates int
)

// ctlCmd groups commands that drive a running `mirage-sim serve`.
var ctlCmd = &cobra.Command{
	Use:   "ctl",
	Short: "Control a running simulator server",
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var ctlStateCmd = &cobra.Command{
	Use:   "state",
	Short: "Print the scheduler state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := client.New(serverURL).State(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), st)
	},
}

var ctlAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Admit a process",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if ctlBurst <= 0 {
			return fmt.Errorf("--burst must be positive, got %d", ctlBurst)
		}
		p, err := client.New(serverURL).AddProcess(cmd.Context(), sim.ProcessSpec{Name: ctlName, BurstTime: ctlBurst, Priority: ctlPriority})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), p)
	},
}

var ctlRemoveCmd = &cobra.Command{
	Use:   "remove ID",
	Short: "Remove a process",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid process id %q: %w", args[0], err)
		}
		return client.New(serverURL).RemoveProcess(cmd.Context(), id)
	},
}

var ctlStepCmd = &cobra.Command{
	Use:   "step",
	Short: "Execute one or more scheduler ticks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if ctlSteps < 1 {
			return fmt.Errorf("--count must be at least 1, got %d", ctlSteps)
		}
		c := client.New(serverURL)
		var st sim.SystemState
		for i := 0; i < ctlSteps; i++ {
			var err error
			if st, err = c.Step(cmd.Context()); err != nil {
				return err
			}
		}
		return printJSON(cmd.OutOrStdout(), st)
	},
}

var ctlAlgorithmCmd = &cobra.Command{
	Use:   "algorithm NAME",
	Short: "Switch the scheduling policy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		policy, err := client.New(serverURL).SetSchedulingAlgorithm(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), policy)
		return err
	},
}

var ctlQuantumCmd = &cobra.Command{
	Use:   "quantum N",
	Short: "Set the round-robin time quantum",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid quantum %q: %w", args[0], err)
		}
		q, err := client.New(serverURL).SetTimeQuantum(cmd.Context(), n)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), q)
		return err
	},
}

var ctlMemoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Print the allocator state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := client.New(serverURL).Memory(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), st)
	},
}

var ctlAllocateCmd = &cobra.Command{
	Use:   "allocate PROCESS_ID SIZE",
	Short: "Allocate memory for a process",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		size, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid size %q: %w", args[1], err)
		}
		res, err := client.New(serverURL).Allocate(cmd.Context(), args[0], size)
		if err != nil {
			return err
		}
		if err := printJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
		if !res.Success {
			return fmt.Errorf("allocation refused: %s", res.Message)
		}
		return nil
	},
}

var ctlDeallocateCmd = &cobra.Command{
	Use:   "deallocate PROCESS_ID",
	Short: "Free the memory held by a process",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := client.New(serverURL).Deallocate(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := printJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
		if !res.Success {
			return fmt.Errorf("deallocation refused: %s", res.Message)
		}
		return nil
	},
}

var ctlPlacementCmd = &cobra.Command{
	Use:   "placement NAME",
	Short: "Switch the memory placement policy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		policy, err := client.New(serverURL).SetAllocationAlgorithm(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), policy)
		return err
	},
}

// errWatchDone ends a watch after the requested number of updates.
var errWatchDone = errors.New("watch done")

var ctlWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print state snapshots as the server pushes them",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		updates := 0
		err := client.New(serverURL).Subscribe(ctx, func(eventType string, snap server.Snapshot) error {
			p := snap.ProcessState
			m := snap.MemoryState
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%-6s tick=%d algorithm=%s processes=%d completed=%v memory=%d/%d free_blocks=%d\n",
				eventType, p.CurrentTime, p.Algorithm, len(p.Processes), p.IsCompleted, m.TotalAllocated, m.TotalSize, m.FragmentationCount); err != nil {
				return err
			}
			if eventType == server.EventUpdate {
				updates++
			}
			if ctlWatchUpdates > 0 && updates >= ctlWatchUpdates {
				return errWatchDone
			}
			return nil
		})
		if errors.Is(err, errWatchDone) || ctx.Err() != nil {
			return nil
		}
		return err
	},
}

func init() {
	ctlCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:3000", "Simulator server base URL")

	ctlAddCmd.Flags().StringVar(&ctlName, "name", "", "Process name")
	ctlAddCmd.Flags().Int64Var(&ctlBurst, "burst", 0, "CPU burst time (ticks)")
	ctlAddCmd.Flags().Int64Var(&ctlPriority, "priority", 0, "Priority (larger runs first under Priority)")
	_ = ctlAddCmd.MarkFlagRequired("burst")
	ctlStepCmd.Flags().IntVarP(&ctlSteps, "count", "n", 1, "Number of ticks to execute")
	ctlWatchCmd.Flags().IntVar(&ctlWatchUpdates, "updates", 0, "Exit after this many updates (0 = until interrupted)")

	ctlCmd.AddCommand(ctlStateCmd, ctlAddCmd, ctlRemoveCmd, ctlStepCmd, ctlAlgorithmCmd, ctlQuantumCmd,
		ctlMemoryCmd, ctlAllocateCmd, ctlDeallocateCmd, ctlPlacementCmd, ctlWatchCmd)
	rootCmd.AddCommand(ctlCmd)
}
