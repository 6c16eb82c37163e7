package main

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rkeller/repofleet/internal/registry"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered repositories",
	Long: `List every repository in the shared registry.

Output formats:
  table  - aligned human-readable table (default)
  json   - entries as a JSON array
  yaml   - entries as a YAML sequence`,
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

		entries := reg.Entries
		if tag, _ := cmd.Flags().GetString("tag"); tag != "" {
			filtered := entries[:0:0]
			for _, e := range entries {
				if slices.Contains(e.Tags, tag) {
					filtered = append(filtered, e)
				}
			}
			entries = filtered
		}

		output, _ := cmd.Flags().GetString("output")
		switch output {
		case "table", "":
			newRenderer().Entries(entries)
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(entries); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		case "yaml":
			// Round-trip through JSON so YAML output carries the same
			// field names as the registry document itself.
			raw, err := json.Marshal(entries)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			var generic []map[string]any
			if err := json.Unmarshal(raw, &generic); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			enc := yaml.NewEncoder(os.Stdout)
			defer enc.Close()
			if err := enc.Encode(generic); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		default:
			fmt.Fprintf(os.Stderr, "Error: unknown output format %q\n", output)
			os.Exit(1)
		}
	},
}

func init() {
	listCmd.Flags().StringP("output", "o", "table", "Output format: table, json, or yaml")
	listCmd.Flags().String("tag", "", "Only list entries carrying this tag")
	rootCmd.AddCommand(listCmd)
}
