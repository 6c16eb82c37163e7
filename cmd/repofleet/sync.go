package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rkeller/repofleet/internal/orchestrator"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile local checkouts against the registry",
	Long: `Run one reconciliation pass over the content root.

Three phases, in order:
  1. adopt  - existing checkouts not yet in the registry are registered
  2. clone  - registered repositories missing on disk are cloned
  3. update - everything else is fetched and moved to its upstream

Each repository gets exactly one outcome per run. Failures are isolated:
one repository erroring never stops the others.

Examples:
  # Full sync
  repofleet sync

  # See what would happen without touching anything
  repofleet sync --dry-run

  # Update only one owner's repositories
  repofleet sync --pattern 'acme/*'`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		logger := newLogger(cfg)

		orch, err := newOrchestrator(cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		dryRun, _ := cmd.Flags().GetBool("dry-run")
		force, _ := cmd.Flags().GetBool("force")
		pattern, _ := cmd.Flags().GetString("pattern")
		workers, _ := cmd.Flags().GetInt("workers")
		if workers <= 0 {
			workers = cfg.Workers
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		summary, err := orch.Run(ctx, orchestrator.Options{
			DryRun:  dryRun,
			Force:   force,
			Pattern: pattern,
			Workers: workers,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		newRenderer().Summary(summary)
		if summary.Failed() {
			os.Exit(1)
		}
	},
}

func init() {
	syncCmd.Flags().BoolP("dry-run", "n", false, "Report what would happen without changing anything")
	syncCmd.Flags().Bool("force", false, "Update dirty working trees instead of skipping them")
	syncCmd.Flags().String("pattern", "", "Only update repositories matching this owner/name pattern")
	syncCmd.Flags().Int("workers", 0, "Concurrent repositories per phase (default from config)")
	rootCmd.AddCommand(syncCmd)
}
