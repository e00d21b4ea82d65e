// Package orchestrator implements the ingestion orchestrator: the
// nested scrape -> enumerate -> download -> extract -> parse -> persist
// state machine that drives every other component.
package orchestrator

import (
	"log/slog"
	"os"

	"github.com/modmapper/crawler/internal/archive"
	"github.com/modmapper/crawler/internal/blobstore"
	"github.com/modmapper/crawler/internal/listing"
	"github.com/modmapper/crawler/internal/nexusapi"
	"github.com/modmapper/crawler/internal/store"
)

// idlePageLimit is how many consecutive no-update listing pages a
// non-"full" run tolerates before stopping early.
const idlePageLimit = 50

// Config configures an Orchestrator.
type Config struct {
	// Game is the Nexus domain name of the target game.
	Game string
	// StartPage is the listing page the run begins from. Defaults to 1.
	StartPage int
	// Full disables the early-stop-after-50-idle-pages behavior.
	Full bool
	// TempDir is the scratch directory per-file downloads extract into.
	// Defaults to os.TempDir().
	TempDir string

	Scraper   *listing.Scraper
	API       *nexusapi.Client
	Extractor *archive.Extractor
	Store     *store.Store
	Blobs     *blobstore.Store
	Logger    *slog.Logger
}

// Orchestrator wires the scraper, API client, extractor, store and blob
// store into one sequential ingestion run.
type Orchestrator struct {
	game      string
	startPage int
	full      bool
	tempDir   string

	scraper   *listing.Scraper
	api       *nexusapi.Client
	extractor *archive.Extractor
	store     *store.Store
	blobs     *blobstore.Store
	log       *slog.Logger
}

// New builds an Orchestrator from cfg.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	startPage := cfg.StartPage
	if startPage == 0 {
		startPage = 1
	}
	tempDir := cfg.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}

	return &Orchestrator{
		game:      cfg.Game,
		startPage: startPage,
		full:      cfg.Full,
		tempDir:   tempDir,
		scraper:   cfg.Scraper,
		api:       cfg.API,
		extractor: cfg.Extractor,
		store:     cfg.Store,
		blobs:     cfg.Blobs,
		log:       logger,
	}
}
