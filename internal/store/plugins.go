package store

import (
	"context"
	"fmt"
)

// InsertPlugin upserts a plugin keyed on (file_id, file_path).
func (s *Store) InsertPlugin(ctx context.Context, p UnsavedPlugin) (*Plugin, error) {
	var out Plugin
	err := s.db.QueryRow(ctx, `
		INSERT INTO plugins
			(file_id, mod_id, hash, name, file_name, file_path, size, version, author, description, masters, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
			ON CONFLICT (file_id, file_path) DO UPDATE
			SET (name, hash, version, author, description, masters, file_name, updated_at) =
			(EXCLUDED.name, EXCLUDED.hash, EXCLUDED.version, EXCLUDED.author, EXCLUDED.description,
			EXCLUDED.masters, EXCLUDED.file_name, now())
			RETURNING id, file_id, mod_id, hash, name, file_name, file_path, size, version, author,
			description, masters, created_at, updated_at`,
		p.FileID, p.ModID, p.Hash, p.Name, p.FileName, p.FilePath, p.Size, p.Version,
		p.Author, p.Description, p.Masters,
	).Scan(
		&out.ID, &out.FileID, &out.ModID, &out.Hash, &out.Name, &out.FileName, &out.FilePath,
		&out.Size, &out.Version, &out.Author, &out.Description, &out.Masters, &out.CreatedAt, &out.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert plugin: %w", err)
	}
	return &out, nil
}
