package store

import (
	"context"
	"fmt"
	"time"
)

// ProcessedMod is the subset of Mod fields the orchestrator needs to decide
// whether a scraped mod has to be reprocessed.
type ProcessedMod struct {
	NexusModID         int32
	LastUpdatedFilesAt *time.Time
}

// BulkGetLastUpdatedByNexusModIDs looks up LastUpdatedFilesAt for every given
// nexus mod id within a game, used to decide which scraped mods are stale.
func (s *Store) BulkGetLastUpdatedByNexusModIDs(ctx context.Context, gameID int32, nexusModIDs []int32) ([]ProcessedMod, error) {
	rows, err := s.db.Query(ctx, `
		SELECT nexus_mod_id, last_updated_files_at
		FROM mods
		WHERE game_id = $1 AND nexus_mod_id = ANY($2::int[])`,
		gameID, nexusModIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("get processed mods: %w", err)
	}
	defer rows.Close()

	var out []ProcessedMod
	for rows.Next() {
		var pm ProcessedMod
		if err := rows.Scan(&pm.NexusModID, &pm.LastUpdatedFilesAt); err != nil {
			return nil, fmt.Errorf("scan processed mod: %w", err)
		}
		out = append(out, pm)
	}
	return out, rows.Err()
}

// BatchedInsertMods upserts mods in pages of BatchSize using UNNEST, keyed on
// (game_id, nexus_mod_id).
func (s *Store) BatchedInsertMods(ctx context.Context, mods []UnsavedMod) ([]Mod, error) {
	var saved []Mod
	for _, batch := range batches(mods, BatchSize) {
		nexusModIDs := make([]int32, len(batch))
		gameIDs := make([]int32, len(batch))
		names := make([]string, len(batch))
		authorNames := make([]string, len(batch))
		authorIDs := make([]int32, len(batch))
		categoryNames := make([]*string, len(batch))
		categoryIDs := make([]*int32, len(batch))
		descriptions := make([]*string, len(batch))
		thumbnailLinks := make([]*string, len(batch))
		isTranslations := make([]bool, len(batch))
		firstUploadAts := make([]time.Time, len(batch))
		lastUpdateAts := make([]time.Time, len(batch))

		for i, m := range batch {
			nexusModIDs[i] = m.NexusModID
			gameIDs[i] = m.GameID
			names[i] = m.Name
			authorNames[i] = m.AuthorName
			authorIDs[i] = m.AuthorID
			categoryNames[i] = m.CategoryName
			categoryIDs[i] = m.CategoryID
			descriptions[i] = m.Description
			thumbnailLinks[i] = m.ThumbnailLink
			isTranslations[i] = m.IsTranslation
			firstUploadAts[i] = m.FirstUploadAt
			lastUpdateAts[i] = m.LastUpdateAt
		}

		rows, err := s.db.Query(ctx, `
			INSERT INTO mods (
				nexus_mod_id, game_id, name, author_name, author_id, category_name,
				category_id, description, thumbnail_link, is_translation,
				first_upload_at, last_update_at, created_at, updated_at
			)
			SELECT *, now(), now() FROM UNNEST(
				$1::int[], $2::int[], $3::text[], $4::text[], $5::int[], $6::text[],
				$7::int[], $8::text[], $9::text[], $10::bool[], $11::timestamp[], $12::timestamp[]
			)
			ON CONFLICT (game_id, nexus_mod_id) DO UPDATE
			SET (name, author_name, author_id, category_name, category_id, description,
				thumbnail_link, is_translation, last_update_at, updated_at) =
				(EXCLUDED.name, EXCLUDED.author_name, EXCLUDED.author_id, EXCLUDED.category_name,
				EXCLUDED.category_id, EXCLUDED.description, EXCLUDED.thumbnail_link,
				EXCLUDED.is_translation, EXCLUDED.last_update_at, now())
			RETURNING id, nexus_mod_id, game_id, name, author_name, author_id, category_name,
				category_id, description, thumbnail_link, is_translation, first_upload_at,
				last_update_at, last_updated_files_at, created_at, updated_at`,
			nexusModIDs, gameIDs, names, authorNames, authorIDs, categoryNames,
			categoryIDs, descriptions, thumbnailLinks, isTranslations, firstUploadAts, lastUpdateAts,
		)
		if err != nil {
			return nil, fmt.Errorf("batched insert mods: %w", err)
		}

		for rows.Next() {
			var m Mod
			if err := rows.Scan(
				&m.ID, &m.NexusModID, &m.GameID, &m.Name, &m.AuthorName, &m.AuthorID,
				&m.CategoryName, &m.CategoryID, &m.Description, &m.ThumbnailLink, &m.IsTranslation,
				&m.FirstUploadAt, &m.LastUpdateAt, &m.LastUpdatedFilesAt, &m.CreatedAt, &m.UpdatedAt,
			); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan mod: %w", err)
			}
			saved = append(saved, m)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("batched insert mods: %w", err)
		}
	}
	return saved, nil
}

// UpdateLastUpdatedFilesAt marks a mod as fully reprocessed.
func (s *Store) UpdateLastUpdatedFilesAt(ctx context.Context, modID int32) error {
	_, err := s.db.Exec(ctx, `UPDATE mods SET last_updated_files_at = now() WHERE id = $1`, modID)
	if err != nil {
		return fmt.Errorf("update mod last_updated_files_at: %w", err)
	}
	return nil
}
