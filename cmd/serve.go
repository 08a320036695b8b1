package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mirage-os/mirage-sim/server"
	"github.com/mirage-os/mirage-sim/sim"
	"github.com/mirage-os/mirage-sim/sim/memory"
)

var (
	serveAddr        string
	subscriberBuffer int
	keepAlive        time.Duration
)

// serveCmd exposes both engines over HTTP with a server-sent event stream.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the simulator over HTTP",
	Run: func(cmd *cobra.Command, args []string) {
		defaults, err := loadDefaultsConfig(defaultsFilePath, cmd.Flags().Changed("defaults"))
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		bundle, err := baseBundle(defaults)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		applyEngineFlags(cmd, bundle)
		if err := bundle.Validate(); err != nil {
			logrus.Fatalf("Invalid engine configuration: %v", err)
		}

		cfg := serverConfig(cmd, defaults.Server)
		addr := serveAddr
		if !cmd.Flags().Changed("addr") && defaults.Server.Addr != "" {
			addr = defaults.Server.Addr
		}

		sched := sim.NewScheduler(bundle.SchedulerConfig())
		alloc := memory.New(bundle.MemoryConfig())
		logrus.Infof("Starting server: scheduler=%s quantum=%d allocator=%s memory=%d",
			sched.Policy(), sched.TimeQuantum(), alloc.Policy(), alloc.State().TotalSize)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := server.New(sched, alloc, cfg).ListenAndServe(ctx, addr); err != nil {
			logrus.Fatalf("Server failed: %v", err)
		}
		logrus.Info("Server stopped.")
	},
}

// serverConfig resolves transport settings; explicitly set flags win over defaults.yaml.
func serverConfig(cmd *cobra.Command, d ServerDefaults) server.Config {
	cfg := server.Config{SubscriberBuffer: subscriberBuffer, KeepAlive: keepAlive}
	if !cmd.Flags().Changed("subscriber-buffer") && d.SubscriberBuffer > 0 {
		cfg.SubscriberBuffer = d.SubscriberBuffer
	}
	if !cmd.Flags().Changed("keep-alive") && d.KeepAliveSeconds > 0 {
		cfg.KeepAlive = time.Duration(d.KeepAliveSeconds) * time.Second
	}
	return cfg
}

func init() {
	addEngineFlags(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":3000", "Listen address")
	serveCmd.Flags().IntVar(&subscriberBuffer, "subscriber-buffer", server.DefaultSubscriberBuffer, "Events buffered per subscriber before drops")
	serveCmd.Flags().DurationVar(&keepAlive, "keep-alive", 15*time.Second, "Event stream keep-alive interval (0 disables)")

	rootCmd.AddCommand(serveCmd)
}
