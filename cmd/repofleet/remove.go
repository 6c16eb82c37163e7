package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/rkeller/repofleet/internal/localstate"
	"github.com/rkeller/repofleet/internal/registry"
)

var removeCmd = &cobra.Command{
	Use:     "remove <id|owner/name>",
	Aliases: []string{"rm"},
	Short:   "Remove a repository from the registry",
	Long: `Remove a repository from the shared registry and record a tombstone.

The tombstone prevents a stale registry copy on another machine from
resurrecting the entry when documents merge. The local checkout is never
deleted; remove it yourself if you no longer want the files.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		store := registry.NewStore(cfg.RegistryPath)
		reg, issues, err := store.Read()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading registry: %v\n", err)
			os.Exit(1)
		}
		for _, issue := range issues {
			fmt.Fprintf(os.Stderr, "Warning: registry: %s\n", issue)
		}

		entry := findEntry(reg, args[0])
		if entry == nil {
			fmt.Fprintf(os.Stderr, "Error: no registered repository matches %q\n", args[0])
			os.Exit(1)
		}

		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			var confirmed bool
			form := huh.NewForm(huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("Remove %s from the registry?", entry.ID)).
					Description("The local checkout stays on disk. Other machines will drop the entry on their next sync.").
					Value(&confirmed),
			))
			if err := form.Run(); err != nil {
				if errors.Is(err, huh.ErrUserAborted) {
					fmt.Println("Cancelled")
					return
				}
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			if !confirmed {
				fmt.Println("Cancelled")
				return
			}
		}

		id := entry.ID
		if err := store.RemoveEntry(reg, id); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		store.AddTombstone(reg, id)
		if err := store.Write(reg); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing registry: %v\n", err)
			os.Exit(1)
		}

		// Forget the per-repo sync state too; a fresh add starts clean.
		stateStore := localstate.NewStore(cfg.StatePath)
		state, stateIssues, err := stateStore.Read()
		if err == nil {
			for _, issue := range stateIssues {
				fmt.Fprintf(os.Stderr, "Warning: local state: %s\n", issue)
			}
			stateStore.RemoveRepoState(state, id)
			if err := stateStore.Write(state); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to write local state: %v\n", err)
			}
		}

		fmt.Printf("Removed %s (tombstoned)\n", id)
	},
}

// findEntry matches either the full id or the owner/name shorthand.
func findEntry(reg *registry.Registry, key string) *registry.Entry {
	if e := reg.FindByID(key); e != nil {
		return e
	}
	for i := range reg.Entries {
		e := &reg.Entries[i]
		if e.Owner+"/"+e.Name == key {
			return e
		}
	}
	return nil
}

func init() {
	removeCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	rootCmd.AddCommand(removeCmd)
}
