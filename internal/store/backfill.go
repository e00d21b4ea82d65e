package store

import (
	"context"
	"fmt"
)

// BaseGameCellSeed describes one cell from the official base plugin in terms
// already localized to (form_id, master) pairs (via
// plugin.LocalFormIDAndMaster in the caller), ready to be matched against the
// worlds this same seeding pass inserts.
type BaseGameCellSeed struct {
	FormID       int32
	Master       string
	WorldFormID  *int32
	WorldMaster  *string
	X            *int32
	Y            *int32
	IsPersistent bool
}

// SeedBaseGameCells upserts the worlds and cells extracted from the official
// base plugin (e.g. Skyrim.esm) in base-game seed mode, marking every
// resulting cell is_base_game=true (grounded on
// original_source/src/commands/backfills/is_base_game.rs). Ordinary ingestion
// never calls this; it is invoked only by the dedicated backfill.
func (s *Store) SeedBaseGameCells(ctx context.Context, worlds []UnsavedWorld, cells []BaseGameCellSeed) ([]World, []Cell, error) {
	savedWorlds, err := s.BatchedInsertWorlds(ctx, worlds)
	if err != nil {
		return nil, nil, fmt.Errorf("seed base game worlds: %w", err)
	}

	worldIDByKey := make(map[worldKey]int32, len(savedWorlds))
	for _, w := range savedWorlds {
		worldIDByKey[worldKey{FormID: w.FormID, Master: w.Master}] = w.ID
	}

	unsavedCells := make([]UnsavedCell, len(cells))
	for i, c := range cells {
		var worldID *int32
		if c.WorldFormID != nil && c.WorldMaster != nil {
			id, ok := worldIDByKey[worldKey{FormID: *c.WorldFormID, Master: *c.WorldMaster}]
			if !ok {
				return nil, nil, fmt.Errorf("seed base game cells: cell form_id=%d master=%s references unseen world form_id=%d master=%s",
					c.FormID, c.Master, *c.WorldFormID, *c.WorldMaster)
			}
			worldID = &id
		}
		unsavedCells[i] = UnsavedCell{
			FormID:       c.FormID,
			Master:       c.Master,
			WorldID:      worldID,
			X:            c.X,
			Y:            c.Y,
			IsPersistent: c.IsPersistent,
			IsBaseGame:   true,
		}
	}

	savedCells, err := s.BatchedSeedBaseGameCells(ctx, unsavedCells)
	if err != nil {
		return nil, nil, fmt.Errorf("seed base game cells: %w", err)
	}
	return savedWorlds, savedCells, nil
}

type worldKey struct {
	FormID int32
	Master string
}

// MarkTranslations flags the given nexus mod ids as translations, returning
// the surrogate ids of the mods actually updated. The caller is responsible
// for scraping the translations listing page by page and supplying the
// nexus mod ids found there (grounded on
// original_source/src/commands/backfills/is_translation.rs, which performs
// that scrape loop itself; here this package only performs the update and
// stays free of an HTTP dependency).
func (s *Store) MarkTranslations(ctx context.Context, nexusModIDs []int32) ([]int32, error) {
	rows, err := s.db.Query(ctx, `
		UPDATE mods SET is_translation = true, updated_at = now()
		WHERE nexus_mod_id = ANY($1::int[])
		RETURNING id`,
		nexusModIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("mark translations: %w", err)
	}
	defer rows.Close()

	var updated []int32
	for rows.Next() {
		var id int32
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan updated mod id: %w", err)
		}
		updated = append(updated, id)
	}
	return updated, rows.Err()
}
