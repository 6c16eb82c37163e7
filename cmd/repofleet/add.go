package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rkeller/repofleet/internal/hostapi"
	"github.com/rkeller/repofleet/internal/identity"
	"github.com/rkeller/repofleet/internal/registry"
)

var addCmd = &cobra.Command{
	Use:   "add <location>",
	Short: "Register a repository for syncing",
	Long: `Register a repository in the shared registry.

The location can be any common git address form:

  git@github.com:acme/widget.git
  https://github.com/acme/widget
  ssh://git@github.com/acme/widget.git

All forms of the same repository resolve to the same identity, so adding
a repository twice is rejected regardless of which form you use. The
checkout is created on the next 'repofleet sync'.

Adding a previously removed repository clears its tombstone.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		ident, err := identity.Resolve(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		store := registry.NewStore(cfg.RegistryPath)
		reg, issues, err := store.Read()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading registry: %v\n", err)
			os.Exit(1)
		}
		for _, issue := range issues {
			fmt.Fprintf(os.Stderr, "Warning: registry: %s\n", issue)
		}

		if reg.FindByID(ident.ID()) != nil {
			fmt.Fprintf(os.Stderr, "Error: %s is already registered\n", ident.ID())
			os.Exit(1)
		}

		hostname, _ := os.Hostname()
		entry := registry.Entry{
			ID:           ident.ID(),
			Host:         ident.Host,
			Owner:        ident.Owner,
			Name:         ident.Name,
			CloneAddress: ident.CloneAddress,
			AddedAt:      time.Now().UTC(),
			AddedBy:      "add@" + hostname,
			Managed:      true,
		}
		registry.DefaultEntryConfig(&entry)

		entry.Description, _ = cmd.Flags().GetString("description")
		entry.Tags, _ = cmd.Flags().GetStringSlice("tags")

		if strategy, _ := cmd.Flags().GetString("strategy"); strategy != "" {
			entry.UpdateStrategy = registry.UpdateStrategy(strategy)
		}
		if subs, _ := cmd.Flags().GetString("submodules"); subs != "" {
			entry.SubmodulePolicy = registry.SubmodulePolicy(subs)
		}
		if lfs, _ := cmd.Flags().GetString("lfs"); lfs != "" {
			entry.LFSPolicy = registry.LFSPolicy(lfs)
		}

		// Fill description and tags from the hosting provider when the
		// user gave none. Best effort: failure changes nothing.
		if noEnrich, _ := cmd.Flags().GetBool("no-enrich"); !noEnrich {
			if entry.Description == "" && len(entry.Tags) == 0 {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				enricher := hostapi.NewGitHub(cfg.GithubToken)
				if meta, ok := enricher.Lookup(ctx, entry.Host, entry.Owner, entry.Name); ok {
					entry.Description = meta.Description
					entry.Tags = meta.Tags
				}
			}
		}

		store.RemoveTombstone(reg, entry.ID)
		if err := store.AddEntry(reg, entry); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := store.Write(reg); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing registry: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Added %s\n", entry.ID)
		fmt.Printf("Run 'repofleet sync' to clone it into %s\n", entry.LocalPath(cfg.Root))
	},
}

func init() {
	addCmd.Flags().String("description", "", "Entry description (skips enrichment)")
	addCmd.Flags().StringSlice("tags", nil, "Entry tags (skips enrichment)")
	addCmd.Flags().String("strategy", "", "Update strategy: hard-reset or fast-forward-only")
	addCmd.Flags().String("submodules", "", "Submodule policy: none or recursive")
	addCmd.Flags().String("lfs", "", "LFS policy: auto, always, or never")
	addCmd.Flags().Bool("no-enrich", false, "Skip metadata lookup against the hosting provider")
	rootCmd.AddCommand(addCmd)
}
