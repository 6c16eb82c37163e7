package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rkeller/repofleet/internal/vcs/git"
)

// version is overridden at build time via -ldflags.
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the repofleet and git versions",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("repofleet %s\n", version)

		adapter, err := git.New()
		if err != nil {
			fmt.Println("git not available")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if v, err := adapter.Version(ctx); err == nil {
			fmt.Println(v)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
