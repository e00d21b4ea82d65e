package main

import (
	"errors"

	"github.com/spf13/cobra"
)

// ErrNotImplemented is returned by the dump command.
var ErrNotImplemented = errors.New("modmapper: dump is not implemented")

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Export read-model data (not implemented)",
	Long: `dump would render the stored worldspaces and cells back out as the
flat per-cell/per-mod/per-hash JSON files downstream consumers expect. That
export is out of scope here; the subcommand is kept so the CLI surface stays
complete.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return ErrNotImplemented
	},
}

func init() {
	rootCmd.AddCommand(dumpCmd)
}
