package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for recipescan.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recipescan",
		Short: "Crawl recipe sites into a CSV dataset",
		Long: `recipescan crawls a recipe site with a headless Chrome browser.

It discovers the recipe categories linked from a landing page, loads every
recipe card of each category, and extracts ingredients, cooking time,
nutrition facts and publish date from each recipe page in parallel.
Deduplicated rows are appended to a CSV file, and every crawl is archived
in a local SQLite database.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewRunsCmd())
	cmd.AddCommand(NewExportCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
