package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/modmapper/crawler/internal/config"
	"github.com/modmapper/crawler/internal/logging"
	"github.com/modmapper/crawler/internal/store"
)

var dedupCmd = &cobra.Command{
	Use:   "dedup",
	Short: "Collapse duplicate interior cells onto a canonical copy",
	Long: `dedup is a one-shot maintenance command. It finds every group of
interior cells sharing the same (form_id, master) key, repoints every
plugin_cells row at the canonical cell in the group (preferring a base-game
copy over a mod-added one), and removes the surviving duplicates.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log := logging.New(cfg.IsDevelopment())

		db, err := store.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			return err
		}

		return db.DeduplicateInteriorCells(ctx, log)
	},
}

func init() {
	rootCmd.AddCommand(dedupCmd)
}
