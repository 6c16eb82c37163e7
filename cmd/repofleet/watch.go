package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rkeller/repofleet/internal/daemon"
	"github.com/rkeller/repofleet/internal/orchestrator"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run sync continuously",
	Long: `Run sync on an interval and whenever the registry document changes.

Registry changes usually mean another machine added or removed
repositories; watching converges this machine without waiting for the
next interval tick. Stop with Ctrl-C; an in-flight sync finishes first.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		logger := newLogger(cfg)

		orch, err := newOrchestrator(cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		dcfg := daemon.DefaultConfig()
		dcfg.Logger = logger
		if interval, _ := cmd.Flags().GetDuration("interval"); interval > 0 {
			dcfg.Interval = interval
		}

		force, _ := cmd.Flags().GetBool("force")
		d, err := daemon.New(orch, orchestrator.Options{
			Force:   force,
			Workers: cfg.Workers,
		}, cfg.RegistryPath, dcfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := d.Run(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	watchCmd.Flags().Duration("interval", time.Hour, "How often to sync regardless of registry changes")
	watchCmd.Flags().Bool("force", false, "Update dirty working trees instead of skipping them")
	rootCmd.AddCommand(watchCmd)
}
