package store

import (
	"context"
	"fmt"
)

// BatchedInsertWorlds upserts worlds in pages of BatchSize using UNNEST,
// keyed on (form_id, master).
func (s *Store) BatchedInsertWorlds(ctx context.Context, worlds []UnsavedWorld) ([]World, error) {
	var saved []World
	for _, batch := range batches(worlds, BatchSize) {
		formIDs := make([]int32, len(batch))
		masters := make([]string, len(batch))
		for i, w := range batch {
			formIDs[i] = w.FormID
			masters[i] = w.Master
		}

		rows, err := s.db.Query(ctx, `
			INSERT INTO worlds (form_id, master, created_at, updated_at)
			SELECT *, now(), now() FROM UNNEST($1::int[], $2::text[])
			ON CONFLICT (form_id, master) DO UPDATE
			SET updated_at = now()
			RETURNING id, form_id, master, created_at, updated_at`,
			formIDs, masters,
		)
		if err != nil {
			return nil, fmt.Errorf("batched insert worlds: %w", err)
		}

		for rows.Next() {
			var w World
			if err := rows.Scan(&w.ID, &w.FormID, &w.Master, &w.CreatedAt, &w.UpdatedAt); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan world: %w", err)
			}
			saved = append(saved, w)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("batched insert worlds: %w", err)
		}
	}
	return saved, nil
}

// BatchedInsertPluginWorlds upserts plugin/world join rows in pages of
// BatchSize using UNNEST, keyed on (plugin_id, world_id).
func (s *Store) BatchedInsertPluginWorlds(ctx context.Context, pluginWorlds []UnsavedPluginWorld) ([]PluginWorld, error) {
	var saved []PluginWorld
	for _, batch := range batches(pluginWorlds, BatchSize) {
		pluginIDs := make([]int32, len(batch))
		worldIDs := make([]int32, len(batch))
		editorIDs := make([]string, len(batch))
		for i, pw := range batch {
			pluginIDs[i] = pw.PluginID
			worldIDs[i] = pw.WorldID
			editorIDs[i] = pw.EditorID
		}

		rows, err := s.db.Query(ctx, `
			INSERT INTO plugin_worlds (plugin_id, world_id, editor_id, created_at, updated_at)
			SELECT *, now(), now() FROM UNNEST($1::int[], $2::int[], $3::text[])
			ON CONFLICT (plugin_id, world_id) DO UPDATE
			SET editor_id = EXCLUDED.editor_id, updated_at = now()
			RETURNING id, plugin_id, world_id, editor_id, created_at, updated_at`,
			pluginIDs, worldIDs, editorIDs,
		)
		if err != nil {
			return nil, fmt.Errorf("batched insert plugin worlds: %w", err)
		}

		for rows.Next() {
			var pw PluginWorld
			if err := rows.Scan(&pw.ID, &pw.PluginID, &pw.WorldID, &pw.EditorID, &pw.CreatedAt, &pw.UpdatedAt); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan plugin world: %w", err)
			}
			saved = append(saved, pw)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("batched insert plugin worlds: %w", err)
		}
	}
	return saved, nil
}
