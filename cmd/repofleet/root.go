package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/rkeller/repofleet/internal/config"
	"github.com/rkeller/repofleet/internal/hostapi"
	"github.com/rkeller/repofleet/internal/localstate"
	"github.com/rkeller/repofleet/internal/orchestrator"
	"github.com/rkeller/repofleet/internal/registry"
	"github.com/rkeller/repofleet/internal/ui"
	"github.com/rkeller/repofleet/internal/vcs/git"
)

var (
	flagConfig string
	flagRoot   string
	flagPlain  bool
)

var rootCmd = &cobra.Command{
	Use:   "repofleet",
	Short: "Keep a fleet of git checkouts converged across machines",
	Long: `repofleet reconciles the git checkouts under a content root against a
shared registry document.

The registry lists every repository you want checked out, laid out as
root/owner/name. Sync it between machines (dotfiles repo, file syncer)
and run 'repofleet sync' on each: existing checkouts are adopted into
the registry, missing ones are cloned, and the rest are updated.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default ~/.config/repofleet/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagRoot, "root", "", "Content root directory (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&flagPlain, "plain", false, "Disable styled output")
}

// loadConfig resolves configuration and applies command-line overrides.
func loadConfig() *config.Config {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if flagRoot != "" {
		// Keep a defaulted registry path tracking the root override;
		// an explicitly configured path stays where it is.
		if cfg.RegistryPath == filepath.Join(cfg.Root, registry.Filename) {
			cfg.RegistryPath = filepath.Join(flagRoot, registry.Filename)
		}
		cfg.Root = flagRoot
	}
	return cfg
}

// newLogger builds the shared logger, rotating to a file when configured.
func newLogger(cfg *config.Config) *log.Logger {
	if cfg.LogFile != "" {
		return log.New(&lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     30, // days
		}, "", log.LstdFlags)
	}
	return log.New(os.Stderr, "", log.LstdFlags)
}

func newRenderer() *ui.Renderer {
	if flagPlain {
		return ui.NewPlainRenderer(os.Stdout)
	}
	return ui.NewRenderer(os.Stdout)
}

// newOrchestrator wires stores, the git adapter, and enrichment from
// resolved configuration.
func newOrchestrator(cfg *config.Config, logger *log.Logger) (*orchestrator.Orchestrator, error) {
	adapter, err := git.New()
	if err != nil {
		return nil, err
	}
	return orchestrator.New(orchestrator.Config{
		Root:       cfg.Root,
		Registry:   registry.NewStore(cfg.RegistryPath),
		LocalState: localstate.NewStore(cfg.StatePath),
		Adapter:    adapter,
		Enricher:   hostapi.NewGitHub(cfg.GithubToken),
		Logger:     logger,
	})
}
