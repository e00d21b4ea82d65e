package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/modmapper/crawler/internal/archive"
	"github.com/modmapper/crawler/internal/listing"
	"github.com/modmapper/crawler/internal/nexusapi"
	"github.com/modmapper/crawler/internal/plugin"
	"github.com/modmapper/crawler/internal/store"
)

// betweenPagesDelay is the fixed pause between listing pages.
var betweenPagesDelay = time.Second

// errSkipFile marks a per-file failure that is caught here rather than
// propagated: the file is abandoned for this run, but the enclosing mod's
// last_updated_files_at is deliberately left unset so the mod is retried on
// the next run.
type errSkipFile struct{ err error }

func (e *errSkipFile) Error() string { return e.err.Error() }
func (e *errSkipFile) Unwrap() error { return e.err }

// Run executes a complete ingestion pass: the non-translation sweep
// followed by the translation sweep.
func (o *Orchestrator) Run(ctx context.Context) error {
	gameID, err := nexusapi.GetGameID(o.game)
	if err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}

	game, err := o.store.UpsertGame(ctx, o.game, gameID)
	if err != nil {
		return fmt.Errorf("orchestrator: upsert game: %w", err)
	}

	for _, includeTranslations := range [2]bool{false, true} {
		if err := o.runListingPass(ctx, game.ID, includeTranslations); err != nil {
			return err
		}
	}
	return nil
}

// runListingPass drives the middle loop: pages of the listing scraper,
// advancing while has_next_page and (full or pages_with_no_updates < 50).
func (o *Orchestrator) runListingPass(ctx context.Context, gameID int32, includeTranslations bool) error {
	page := o.startPage
	hasNextPage := true
	pagesWithNoUpdates := 0

	for hasNextPage {
		if !o.full && pagesWithNoUpdates >= idlePageLimit {
			o.log.Warn("no updates found for 50 pages in a row, aborting",
				"include_translations", includeTranslations)
			break
		}

		scraped, next, err := o.scraper.ListPage(ctx, o.game, page, includeTranslations)
		if err != nil {
			return fmt.Errorf("orchestrator: list page %d: %w", page, err)
		}
		hasNextPage = next

		dbMods, err := o.upsertListingPage(ctx, gameID, includeTranslations, scraped)
		if err != nil {
			return fmt.Errorf("orchestrator: upsert listing page %d: %w", page, err)
		}

		if len(dbMods) == 0 {
			pagesWithNoUpdates++
		} else {
			pagesWithNoUpdates = 0
		}

		for _, m := range dbMods {
			if err := o.processMod(ctx, m); err != nil {
				return fmt.Errorf("orchestrator: mod %d: %w", m.NexusModID, err)
			}
		}

		page++
		if ctx.Err() != nil {
			return ctx.Err()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(betweenPagesDelay):
		}
	}
	return nil
}

// upsertListingPage applies the per-mod skip rule to a scraped
// page and upserts the survivors. A mod is skipped when its
// last_updated_files_at is already strictly after last_update_at (promoted
// to midnight).
func (o *Orchestrator) upsertListingPage(ctx context.Context, gameID int32, includeTranslations bool, mods []listing.Mod) ([]store.Mod, error) {
	if len(mods) == 0 {
		return nil, nil
	}

	nexusModIDs := make([]int32, len(mods))
	for i, m := range mods {
		nexusModIDs[i] = int32(m.NexusModID)
	}
	processed, err := o.store.BulkGetLastUpdatedByNexusModIDs(ctx, gameID, nexusModIDs)
	if err != nil {
		return nil, fmt.Errorf("lookup processed mods: %w", err)
	}
	lastUpdatedFilesAtByID := make(map[int32]*time.Time, len(processed))
	for _, p := range processed {
		lastUpdatedFilesAtByID[p.NexusModID] = p.LastUpdatedFilesAt
	}

	var toUpsert []store.UnsavedMod
	for _, m := range mods {
		lastUpdateAt := midnight(m.LastUpdate)
		if lastUpdatedFilesAt, ok := lastUpdatedFilesAtByID[int32(m.NexusModID)]; ok && lastUpdatedFilesAt != nil {
			if lastUpdatedFilesAt.After(lastUpdateAt) {
				continue
			}
		}
		toUpsert = append(toUpsert, store.UnsavedMod{
			NexusModID:    int32(m.NexusModID),
			GameID:        gameID,
			Name:          m.Name,
			AuthorName:    m.AuthorName,
			AuthorID:      int32(m.AuthorID),
			CategoryName:  m.CategoryName,
			CategoryID:    int32Ptr(m.CategoryID),
			Description:   m.Description,
			ThumbnailLink: m.ThumbnailURL,
			IsTranslation: includeTranslations,
			FirstUploadAt: midnight(m.FirstUpload),
			LastUpdateAt:  lastUpdateAt,
		})
	}
	if len(toUpsert) == 0 {
		return nil, nil
	}
	return o.store.BatchedInsertMods(ctx, toUpsert)
}

// processMod runs the per-file inner loop for one mod. A
// transient per-file failure leaves last_updated_files_at unset so the mod
// is revisited next run; any other error propagates and aborts the run.
func (o *Orchestrator) processMod(ctx context.Context, m store.Mod) error {
	log := o.log.With("mod", m.Name, "nexus_mod_id", m.NexusModID)

	filesResp, err := o.api.GetFilesForMod(ctx, o.game, int(m.NexusModID))
	if err != nil {
		return fmt.Errorf("get files for mod: %w", err)
	}
	if err := o.pace(ctx); err != nil {
		return err
	}

	processedFileIDs, err := o.store.GetProcessedNexusFileIDsByModID(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("get processed file ids: %w", err)
	}

	needsRetryLater := false
	for _, f := range filesResp.Files {
		flog := log.With("file", f.FileName, "nexus_file_id", f.FileID)

		if f.Category == nil {
			flog.Info("skipping file with no category")
			continue
		}
		if *f.Category == "ARCHIVED" {
			continue
		}
		if processedFileIDs[int32(f.FileID)] {
			flog.Info("skipping file already present and processed in database")
			continue
		}

		if err := o.processFile(ctx, flog, m, f); err != nil {
			var skip *errSkipFile
			if errors.As(err, &skip) {
				flog.Warn("skipping file after transient failure, will retry next run", "error", skip.Unwrap())
				needsRetryLater = true
				continue
			}
			return fmt.Errorf("file %d: %w", f.FileID, err)
		}
	}

	if needsRetryLater {
		return nil
	}
	if err := o.store.UpdateLastUpdatedFilesAt(ctx, m.ID); err != nil {
		return fmt.Errorf("update last_updated_files_at: %w", err)
	}
	return nil
}

// processFile runs one file through its full lifecycle: upsert the File
// row, check the metadata preview, fetch the download link, download,
// record downloaded_at, infer the archive type, extract, and process each
// plugin found inside.
func (o *Orchestrator) processFile(ctx context.Context, log *slog.Logger, m store.Mod, f nexusapi.APIFile) error {
	dbFile, err := o.store.InsertFile(ctx, store.UnsavedFile{
		NexusFileID: int32(f.FileID),
		ModID:       m.ID,
		Name:        f.Name,
		FileName:    f.FileName,
		Category:    f.Category,
		Version:     f.Version,
		ModVersion:  f.ModVersion,
		Size:        f.Size(),
		UploadedAt:  time.Unix(f.UploadedTimestamp, 0).UTC(),
	})
	if err != nil {
		return fmt.Errorf("insert file: %w", err)
	}

	checkedMetadata := false
	node, metaErr := o.api.GetFileMetadata(ctx, f.ContentPreviewLink)
	if err := o.pace(ctx); err != nil {
		return err
	}
	switch {
	case metaErr != nil:
		log.Warn("error retrieving metadata for file, continuing with download", "error", metaErr)
	case node == nil:
		log.Warn("file has no metadata link, continuing with download")
	default:
		checkedMetadata = true
		if !node.HasPlugin() {
			log.Info("file metadata does not contain a plugin, skip downloading")
			return o.store.UpdateHasPlugin(ctx, dbFile.ID, false)
		}
	}

	log.Info("decided to download file", "size", humanize.Bytes(uint64(f.Size())))
	link, err := o.api.GetDownloadLink(ctx, o.game, int(m.NexusModID), f.FileID)
	if waitErr := o.pace(ctx); waitErr != nil {
		return waitErr
	}
	if errors.Is(err, nexusapi.ErrNotFound) {
		log.Warn("failed to get download link for file, skipping file")
		return o.store.UpdateHasDownloadLink(ctx, dbFile.ID, false)
	}
	if err != nil {
		return &errSkipFile{fmt.Errorf("get download link: %w", err)}
	}

	fileTempDir, err := os.MkdirTemp(o.tempDir, "modmapper-file-*")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(fileTempDir)

	archivePath, err := o.api.DownloadFile(ctx, link, fileTempDir)
	if err != nil {
		return &errSkipFile{fmt.Errorf("download file: %w", err)}
	}
	log.Info("download finished", "bytes", f.Size())
	if err := o.store.UpdateDownloadedAt(ctx, dbFile.ID); err != nil {
		return fmt.Errorf("update downloaded_at: %w", err)
	}

	header, n, err := readHeader(archivePath)
	if err != nil {
		log.Warn("failed to read initial bytes, skipping file", "error", err)
		return o.store.UpdateUnableToExtractPlugins(ctx, dbFile.ID, true)
	}
	mime, ok := archive.DetectMIME(header[:n])
	if !ok {
		log.Warn("could not infer mime type of downloaded archive, skipping file")
		return o.store.UpdateUnableToExtractPlugins(ctx, dbFile.ID, true)
	}
	log.Info("inferred mime type of downloaded archive", "mime_type", mime)

	plugins, err := o.extractor.Extract(ctx, archivePath, mime)
	if err != nil {
		if checkedMetadata {
			return fmt.Errorf("%w: metadata promised a plugin in file %d but extraction failed: %v", ErrInvariantViolation, dbFile.ID, err)
		}
		log.Warn("unable to extract plugins from archive, skipping file", "error", err)
		return o.store.UpdateUnableToExtractPlugins(ctx, dbFile.ID, true)
	}

	for _, pf := range plugins {
		if err := o.processPlugin(ctx, log, m, dbFile, pf); err != nil {
			return fmt.Errorf("process plugin %s: %w", pf.Path, err)
		}
	}
	return nil
}

// processPlugin parses one extracted plugin and persists its derived rows.
// Parse failures are logged and skipped, not propagated: the raw bytes are
// always written to the blob store regardless of parse outcome, so a bad
// parse still leaves the raw bytes on disk as evidence.
func (o *Orchestrator) processPlugin(ctx context.Context, log *slog.Logger, m store.Mod, dbFile *store.File, pf archive.PluginFile) error {
	if len(pf.Data) == 0 {
		log.Warn("skipping processing of invalid empty plugin", "path", pf.Path)
	} else {
		log.Info("parsing plugin", "bytes", len(pf.Data), "path", pf.Path)
		contents, err := plugin.ParsePlugin(pf.Data, filepath.Base(pf.Path))
		if err != nil {
			log.Warn("failed to parse plugin, skipping plugin", "path", pf.Path, "error", err)
		} else if contents != nil {
			log.Info("parse finished", "num_worlds", len(contents.Worlds), "num_cells", len(contents.Cells))
			if err := o.persistPluginContents(ctx, m, dbFile, pf, contents); err != nil {
				return err
			}
		}
	}

	dest, err := o.blobs.Write(o.game, m.NexusModID, dbFile.NexusFileID, pf.Path, pf.Data)
	if err != nil {
		return fmt.Errorf("write plugin blob: %w", err)
	}
	log.Info("saved plugin to disk", "path", dest)
	return nil
}

// worldKey identifies a World by its natural key, used to resolve a cell's
// optional worldspace reference against the worlds just inserted for this
// plugin.
type worldKey struct {
	FormID int32
	Master string
}

// cellKey identifies a Cell by its natural key. The normal-mode cell upsert
// filters conflicting base-game rows out of its RETURNING set, so the rows
// that come back cannot be paired with the input cells by position; they are
// matched by key instead.
type cellKey struct {
	FormID   int32
	Master   string
	WorldID  int32
	Interior bool
}

func cellKeyOf(formID int32, master string, worldID *int32) cellKey {
	k := cellKey{FormID: formID, Master: master, Interior: worldID == nil}
	if worldID != nil {
		k.WorldID = *worldID
	}
	return k
}

// persistPluginContents inserts the Plugin row and its derived Worlds,
// PluginWorlds, Cells and PluginCells, in referential order: worlds before
// plugin_worlds before cells before plugin_cells.
func (o *Orchestrator) persistPluginContents(ctx context.Context, m store.Mod, dbFile *store.File, pf archive.PluginFile, c *plugin.Contents) error {
	fileName := filepath.Base(pf.Path)
	masters := make([]string, len(c.Header.Masters))
	for i, master := range c.Header.Masters {
		masters[i] = master.Filename
	}

	var author, description *string
	if c.Header.Author != "" {
		author = &c.Header.Author
	}
	if c.Header.Description != "" {
		description = &c.Header.Description
	}

	dbPlugin, err := o.store.InsertPlugin(ctx, store.UnsavedPlugin{
		FileID:      dbFile.ID,
		ModID:       m.ID,
		Hash:        int64(plugin.ContentHash(pf.Data)),
		Name:        dbFile.Name,
		FileName:    fileName,
		FilePath:    pf.Path,
		Size:        int64(len(pf.Data)),
		Version:     float64(c.Header.Version),
		Author:      author,
		Description: description,
		Masters:     masters,
	})
	if err != nil {
		return fmt.Errorf("insert plugin: %w", err)
	}

	unsavedWorlds := make([]store.UnsavedWorld, len(c.Worlds))
	for i, w := range c.Worlds {
		formID, master := plugin.LocalFormIDAndMaster(w.FormID, masters, fileName)
		unsavedWorlds[i] = store.UnsavedWorld{FormID: int32(formID), Master: master}
	}
	dbWorlds, err := o.store.BatchedInsertWorlds(ctx, unsavedWorlds)
	if err != nil {
		return fmt.Errorf("insert worlds: %w", err)
	}

	unsavedPluginWorlds := make([]store.UnsavedPluginWorld, len(dbWorlds))
	for i, dbWorld := range dbWorlds {
		unsavedPluginWorlds[i] = store.UnsavedPluginWorld{
			PluginID: dbPlugin.ID,
			WorldID:  dbWorld.ID,
			EditorID: c.Worlds[i].EditorID,
		}
	}
	if _, err := o.store.BatchedInsertPluginWorlds(ctx, unsavedPluginWorlds); err != nil {
		return fmt.Errorf("insert plugin worlds: %w", err)
	}

	worldIDByKey := make(map[worldKey]int32, len(dbWorlds))
	for _, w := range dbWorlds {
		worldIDByKey[worldKey{FormID: w.FormID, Master: w.Master}] = w.ID
	}

	unsavedCells := make([]store.UnsavedCell, len(c.Cells))
	editorIDByCell := make(map[cellKey]*string, len(c.Cells))
	for i, cell := range c.Cells {
		var worldID *int32
		if cell.WorldFormID != nil {
			formID, master := plugin.LocalFormIDAndMaster(*cell.WorldFormID, masters, fileName)
			id, ok := worldIDByKey[worldKey{FormID: int32(formID), Master: master}]
			if !ok {
				return fmt.Errorf("%w: cell references world form_id=%d master=%s not found among this plugin's worlds",
					ErrInvariantViolation, formID, master)
			}
			worldID = &id
		}
		formID, master := plugin.LocalFormIDAndMaster(cell.FormID, masters, fileName)
		unsavedCells[i] = store.UnsavedCell{
			FormID:       int32(formID),
			Master:       master,
			WorldID:      worldID,
			X:            cell.X,
			Y:            cell.Y,
			IsPersistent: cell.IsPersistent,
		}
		if cell.EditorID != "" {
			id := cell.EditorID
			editorIDByCell[cellKeyOf(int32(formID), master, worldID)] = &id
		}
	}
	dbCells, err := o.store.BatchedInsertCells(ctx, unsavedCells)
	if err != nil {
		return fmt.Errorf("insert cells: %w", err)
	}

	unsavedPluginCells := make([]store.UnsavedPluginCell, len(dbCells))
	for i, dbCell := range dbCells {
		unsavedPluginCells[i] = store.UnsavedPluginCell{
			PluginID: dbPlugin.ID,
			CellID:   dbCell.ID,
			FileID:   dbFile.ID,
			ModID:    m.ID,
			EditorID: editorIDByCell[cellKeyOf(dbCell.FormID, dbCell.Master, dbCell.WorldID)],
		}
	}
	if _, err := o.store.BatchedInsertPluginCells(ctx, unsavedPluginCells); err != nil {
		return fmt.Errorf("insert plugin cells: %w", err)
	}
	return nil
}

// pace awaits the rate-limit gate's most recently computed delay, keeping
// the crawl inside the upstream's request quota.
func (o *Orchestrator) pace(ctx context.Context) error {
	wait := o.api.LastWait()
	if wait <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func int32Ptr(p *int) *int32 {
	if p == nil {
		return nil
	}
	v := int32(*p)
	return &v
}

// readHeader reads up to the first 8 bytes of path, used to infer the
// archive's MIME type.
func readHeader(path string) ([]byte, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	buf := make([]byte, 8)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, 0, err
	}
	return buf, n, nil
}
