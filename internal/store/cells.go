package store

import (
	"context"
	"fmt"
)

// cellUpsertQuery builds the UNNEST upsert statement for cells. In normal
// mode the ON CONFLICT clause additionally filters WHERE NOT
// cells.is_base_game, so a mod shipping its own copy of the base plugin can
// never corrupt canonical base-game cells; seed mode drops that filter and is
// invoked only by the base-game backfill.
func cellUpsertQuery(seedBaseGame bool) string {
	conflictFilter := " WHERE NOT cells.is_base_game"
	if seedBaseGame {
		conflictFilter = ""
	}
	return `
		INSERT INTO cells (form_id, master, world_id, x, y, is_persistent, is_base_game, created_at, updated_at)
		SELECT *, now(), now() FROM UNNEST(
			$1::int[], $2::text[], $3::int[], $4::int[], $5::int[], $6::bool[], $7::bool[]
		)
		ON CONFLICT (form_id, master, world_id) DO UPDATE
		SET (x, y, is_persistent, is_base_game, updated_at) =
			(EXCLUDED.x, EXCLUDED.y, EXCLUDED.is_persistent, EXCLUDED.is_base_game, now())` + conflictFilter + `
		RETURNING id, form_id, master, world_id, x, y, is_persistent, is_base_game, created_at, updated_at`
}

func (s *Store) batchedInsertCells(ctx context.Context, cells []UnsavedCell, seedBaseGame bool) ([]Cell, error) {
	var saved []Cell
	query := cellUpsertQuery(seedBaseGame)
	for _, batch := range batches(cells, BatchSize) {
		formIDs := make([]int32, len(batch))
		masters := make([]string, len(batch))
		worldIDs := make([]*int32, len(batch))
		xs := make([]*int32, len(batch))
		ys := make([]*int32, len(batch))
		isPersistent := make([]bool, len(batch))
		isBaseGame := make([]bool, len(batch))
		for i, c := range batch {
			formIDs[i] = c.FormID
			masters[i] = c.Master
			worldIDs[i] = c.WorldID
			xs[i] = c.X
			ys[i] = c.Y
			isPersistent[i] = c.IsPersistent
			isBaseGame[i] = c.IsBaseGame
		}

		rows, err := s.db.Query(ctx, query, formIDs, masters, worldIDs, xs, ys, isPersistent, isBaseGame)
		if err != nil {
			return nil, fmt.Errorf("batched insert cells: %w", err)
		}

		for rows.Next() {
			var c Cell
			if err := rows.Scan(
				&c.ID, &c.FormID, &c.Master, &c.WorldID, &c.X, &c.Y,
				&c.IsPersistent, &c.IsBaseGame, &c.CreatedAt, &c.UpdatedAt,
			); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan cell: %w", err)
			}
			saved = append(saved, c)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("batched insert cells: %w", err)
		}
	}
	return saved, nil
}

// BatchedInsertCells upserts cells in normal mode: base-game cells are
// immutable against this path.
func (s *Store) BatchedInsertCells(ctx context.Context, cells []UnsavedCell) ([]Cell, error) {
	return s.batchedInsertCells(ctx, cells, false)
}

// BatchedSeedBaseGameCells upserts cells in base-game seed mode, permitted to
// overwrite existing base-game cells. Only the base-game
// backfill (SeedBaseGameCells) may call this.
func (s *Store) BatchedSeedBaseGameCells(ctx context.Context, cells []UnsavedCell) ([]Cell, error) {
	return s.batchedInsertCells(ctx, cells, true)
}

// BatchedInsertPluginCells upserts plugin/cell join rows in pages of
// BatchSize using UNNEST, keyed on (plugin_id, cell_id). FileID and ModID are
// denormalised onto the row and must be supplied consistently.
func (s *Store) BatchedInsertPluginCells(ctx context.Context, pluginCells []UnsavedPluginCell) ([]PluginCell, error) {
	var saved []PluginCell
	for _, batch := range batches(pluginCells, BatchSize) {
		pluginIDs := make([]int32, len(batch))
		cellIDs := make([]int32, len(batch))
		fileIDs := make([]int32, len(batch))
		modIDs := make([]int32, len(batch))
		editorIDs := make([]*string, len(batch))
		for i, pc := range batch {
			pluginIDs[i] = pc.PluginID
			cellIDs[i] = pc.CellID
			fileIDs[i] = pc.FileID
			modIDs[i] = pc.ModID
			editorIDs[i] = pc.EditorID
		}

		rows, err := s.db.Query(ctx, `
			INSERT INTO plugin_cells (plugin_id, cell_id, file_id, mod_id, editor_id, created_at, updated_at)
			SELECT *, now(), now() FROM UNNEST(
				$1::int[], $2::int[], $3::int[], $4::int[], $5::text[]
			)
			ON CONFLICT (plugin_id, cell_id) DO UPDATE
			SET editor_id = EXCLUDED.editor_id, updated_at = now()
			RETURNING id, plugin_id, cell_id, file_id, mod_id, editor_id, created_at, updated_at`,
			pluginIDs, cellIDs, fileIDs, modIDs, editorIDs,
		)
		if err != nil {
			return nil, fmt.Errorf("batched insert plugin cells: %w", err)
		}

		for rows.Next() {
			var pc PluginCell
			if err := rows.Scan(
				&pc.ID, &pc.PluginID, &pc.CellID, &pc.FileID, &pc.ModID, &pc.EditorID, &pc.CreatedAt, &pc.UpdatedAt,
			); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan plugin cell: %w", err)
			}
			saved = append(saved, pc)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("batched insert plugin cells: %w", err)
		}
	}
	return saved, nil
}
