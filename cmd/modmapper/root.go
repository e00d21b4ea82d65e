package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "modmapper",
	Short: "Crawl Nexus Mods and map Skyrim plugin worldspaces and cells",
	Long: `modmapper pages through the Nexus Mods catalog for a configured game,
downloads each mod's files, extracts any Skyrim plugins it finds inside, and
parses their worldspace and cell records into PostgreSQL.

Configuration is read from the environment, or from a .env file in the
current or a parent directory (DATABASE_URL, NEXUS_API_KEY, GAME, DATA_DIR).`,
}

// Execute runs the CLI, exiting the process with a non-zero status on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "modmapper:", err)
		os.Exit(1)
	}
}
