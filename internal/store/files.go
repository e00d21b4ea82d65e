package store

import (
	"context"
	"fmt"
)

// GetProcessedNexusFileIDsByModID returns the nexus_file_id of every file
// already considered processed for a mod: downloaded, known to lack a
// plugin, or known to lack a download link.
func (s *Store) GetProcessedNexusFileIDsByModID(ctx context.Context, modID int32) (map[int32]bool, error) {
	rows, err := s.db.Query(ctx, `
		SELECT nexus_file_id FROM files
		WHERE mod_id = $1
		AND (downloaded_at IS NOT NULL OR NOT has_plugin OR NOT has_download_link)`,
		modID,
	)
	if err != nil {
		return nil, fmt.Errorf("get processed file ids: %w", err)
	}
	defer rows.Close()

	out := make(map[int32]bool)
	for rows.Next() {
		var id int32
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan processed file id: %w", err)
		}
		out[id] = true
	}
	return out, rows.Err()
}

// InsertFile upserts a file keyed on (mod_id, nexus_file_id).
func (s *Store) InsertFile(ctx context.Context, f UnsavedFile) (*File, error) {
	var out File
	err := s.db.QueryRow(ctx, `
		INSERT INTO files
			(nexus_file_id, mod_id, name, file_name, category, version, mod_version,
			size, uploaded_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
			ON CONFLICT (mod_id, nexus_file_id) DO UPDATE
			SET (name, file_name, category, version, mod_version, uploaded_at, updated_at) =
			(EXCLUDED.name, EXCLUDED.file_name, EXCLUDED.category, EXCLUDED.version,
			EXCLUDED.mod_version, EXCLUDED.uploaded_at, now())
			RETURNING id, nexus_file_id, mod_id, name, file_name, category, version, mod_version,
			size, uploaded_at, has_download_link, downloaded_at, has_plugin,
			unable_to_extract_plugins, created_at, updated_at`,
		f.NexusFileID, f.ModID, f.Name, f.FileName, f.Category, f.Version, f.ModVersion,
		f.Size, f.UploadedAt,
	).Scan(
		&out.ID, &out.NexusFileID, &out.ModID, &out.Name, &out.FileName, &out.Category,
		&out.Version, &out.ModVersion, &out.Size, &out.UploadedAt, &out.HasDownloadLink,
		&out.DownloadedAt, &out.HasPlugin, &out.UnableToExtractPlugins, &out.CreatedAt, &out.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert file: %w", err)
	}
	return &out, nil
}

// UpdateHasDownloadLink records a 404 on the download-link endpoint.
func (s *Store) UpdateHasDownloadLink(ctx context.Context, id int32, hasDownloadLink bool) error {
	_, err := s.db.Exec(ctx, `UPDATE files SET has_download_link = $2, updated_at = now() WHERE id = $1`, id, hasDownloadLink)
	if err != nil {
		return fmt.Errorf("update file has_download_link: %w", err)
	}
	return nil
}

// UpdateHasPlugin records a definitive metadata-preview verdict.
func (s *Store) UpdateHasPlugin(ctx context.Context, id int32, hasPlugin bool) error {
	_, err := s.db.Exec(ctx, `UPDATE files SET has_plugin = $2, updated_at = now() WHERE id = $1`, id, hasPlugin)
	if err != nil {
		return fmt.Errorf("update file has_plugin: %w", err)
	}
	return nil
}

// UpdateUnableToExtractPlugins records an extractor failure.
func (s *Store) UpdateUnableToExtractPlugins(ctx context.Context, id int32, unable bool) error {
	_, err := s.db.Exec(ctx, `UPDATE files SET unable_to_extract_plugins = $2, updated_at = now() WHERE id = $1`, id, unable)
	if err != nil {
		return fmt.Errorf("update file unable_to_extract_plugins: %w", err)
	}
	return nil
}

// UpdateDownloadedAt marks a file as successfully downloaded.
func (s *Store) UpdateDownloadedAt(ctx context.Context, id int32) error {
	_, err := s.db.Exec(ctx, `UPDATE files SET downloaded_at = now(), updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update file downloaded_at: %w", err)
	}
	return nil
}
