package store

import (
	"context"
	"fmt"
)

// schemaStatements creates every table and unique index the upsert paths
// conflict against. Statements are idempotent (IF NOT EXISTS) so EnsureSchema
// can run unconditionally at startup.
//
// cells carries a NULLS NOT DISTINCT unique constraint so that interior cells
// (world_id IS NULL) conflict like any other row; historical databases
// created before that constraint may still hold duplicate interior cells,
// which DeduplicateInteriorCells collapses.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS games (
		id SERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		nexus_game_id INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (nexus_game_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS mods (
		id SERIAL PRIMARY KEY,
		nexus_mod_id INTEGER NOT NULL,
		game_id INTEGER NOT NULL REFERENCES games(id),
		name TEXT NOT NULL,
		author_name TEXT NOT NULL,
		author_id INTEGER NOT NULL,
		category_name TEXT,
		category_id INTEGER,
		description TEXT,
		thumbnail_link TEXT,
		is_translation BOOLEAN NOT NULL DEFAULT false,
		first_upload_at TIMESTAMP NOT NULL,
		last_update_at TIMESTAMP NOT NULL,
		last_updated_files_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (game_id, nexus_mod_id)
	)`,
	`CREATE TABLE IF NOT EXISTS files (
		id SERIAL PRIMARY KEY,
		nexus_file_id INTEGER NOT NULL,
		mod_id INTEGER NOT NULL REFERENCES mods(id),
		name TEXT NOT NULL,
		file_name TEXT NOT NULL,
		category TEXT,
		version TEXT,
		mod_version TEXT,
		size BIGINT NOT NULL,
		uploaded_at TIMESTAMP NOT NULL,
		has_download_link BOOLEAN NOT NULL DEFAULT true,
		downloaded_at TIMESTAMP,
		has_plugin BOOLEAN NOT NULL DEFAULT true,
		unable_to_extract_plugins BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (mod_id, nexus_file_id)
	)`,
	`CREATE TABLE IF NOT EXISTS plugins (
		id SERIAL PRIMARY KEY,
		file_id INTEGER NOT NULL REFERENCES files(id),
		mod_id INTEGER NOT NULL REFERENCES mods(id),
		hash BIGINT NOT NULL,
		name TEXT NOT NULL,
		file_name TEXT NOT NULL,
		file_path TEXT NOT NULL,
		size BIGINT NOT NULL,
		version DOUBLE PRECISION NOT NULL,
		author TEXT,
		description TEXT,
		masters TEXT[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (file_id, file_path)
	)`,
	`CREATE INDEX IF NOT EXISTS plugins_hash_idx ON plugins (hash)`,
	`CREATE TABLE IF NOT EXISTS worlds (
		id SERIAL PRIMARY KEY,
		form_id INTEGER NOT NULL,
		master TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (form_id, master)
	)`,
	`CREATE TABLE IF NOT EXISTS cells (
		id SERIAL PRIMARY KEY,
		form_id INTEGER NOT NULL,
		master TEXT NOT NULL,
		world_id INTEGER REFERENCES worlds(id),
		x INTEGER,
		y INTEGER,
		is_persistent BOOLEAN NOT NULL DEFAULT false,
		is_base_game BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE NULLS NOT DISTINCT (form_id, master, world_id)
	)`,
	`CREATE TABLE IF NOT EXISTS plugin_worlds (
		id SERIAL PRIMARY KEY,
		plugin_id INTEGER NOT NULL REFERENCES plugins(id),
		world_id INTEGER NOT NULL REFERENCES worlds(id),
		editor_id TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (plugin_id, world_id)
	)`,
	`CREATE TABLE IF NOT EXISTS plugin_cells (
		id SERIAL PRIMARY KEY,
		plugin_id INTEGER NOT NULL REFERENCES plugins(id),
		cell_id INTEGER NOT NULL REFERENCES cells(id),
		file_id INTEGER NOT NULL REFERENCES files(id),
		mod_id INTEGER NOT NULL REFERENCES mods(id),
		editor_id TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (plugin_id, cell_id)
	)`,
	`CREATE INDEX IF NOT EXISTS plugin_cells_mod_id_idx ON plugin_cells (mod_id)`,
	`CREATE INDEX IF NOT EXISTS plugin_cells_file_id_idx ON plugin_cells (file_id)`,
}

// EnsureSchema creates any missing tables and indexes. Safe to run on every
// startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
