package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/cobra"

	"github.com/modmapper/crawler/internal/archive"
	"github.com/modmapper/crawler/internal/blobstore"
	"github.com/modmapper/crawler/internal/config"
	"github.com/modmapper/crawler/internal/listing"
	"github.com/modmapper/crawler/internal/logging"
	"github.com/modmapper/crawler/internal/nexusapi"
	"github.com/modmapper/crawler/internal/orchestrator"
	"github.com/modmapper/crawler/internal/ratelimit"
	"github.com/modmapper/crawler/internal/store"
)

var (
	crawlPage int
	crawlFull bool
	crawlGame string
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Run a complete scrape, download, extract and persist pass",
	Long: `crawl pages through the mod listing for the configured game, enumerates
each mod's files, downloads and extracts any Skyrim plugins they contain, and
persists the worldspaces and cells parsed out of them.

A run that is not --full stops early after 50 consecutive listing pages with
no mods needing an update; --full disables that early stop and walks the
entire catalog.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if crawlGame != "" {
			cfg.Game = crawlGame
		}
		if crawlPage != 0 {
			cfg.StartPage = crawlPage
		}
		if crawlFull {
			cfg.Full = true
		}

		log := logging.New(cfg.IsDevelopment())

		dataDir := cfg.DataDir
		if dataDir == "" {
			dir, err := xdg.DataFile(filepath.Join("modmapper", "data"))
			if err != nil {
				return fmt.Errorf("resolve default data directory: %w", err)
			}
			dataDir = dir
		}
		tempDir := filepath.Join(dataDir, "tmp")
		if err := os.MkdirAll(tempDir, 0o755); err != nil {
			return fmt.Errorf("create scratch directory: %w", err)
		}

		db, err := store.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			return err
		}

		api, err := nexusapi.NewClient(nexusapi.ClientConfig{
			APIKey:     cfg.NexusAPIKey,
			HTTPClient: &http.Client{Timeout: 2 * time.Hour},
			Gate:       ratelimit.New(),
		})
		if err != nil {
			return fmt.Errorf("build nexus api client: %w", err)
		}

		o := orchestrator.New(orchestrator.Config{
			Game:      cfg.Game,
			StartPage: cfg.StartPage,
			Full:      cfg.Full,
			TempDir:   tempDir,
			Scraper:   listing.New(listing.Config{}),
			API:       api,
			Extractor: archive.New(archive.Config{SevenZipPath: cfg.SevenZipPath, TempDir: tempDir}),
			Store:     db,
			Blobs:     blobstore.New(dataDir),
			Logger:    log,
		})

		log.Info("starting crawl", "game", cfg.Game, "start_page", cfg.StartPage, "full", cfg.Full)
		return o.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(crawlCmd)

	crawlCmd.Flags().IntVar(&crawlPage, "page", 0, "listing page to start from (default: config START_PAGE, or 1)")
	crawlCmd.Flags().BoolVar(&crawlFull, "full", false, "disable the early-stop-after-50-idle-pages behavior")
	crawlCmd.Flags().StringVar(&crawlGame, "game", "", "Nexus domain name of the target game (default: config GAME)")
}
