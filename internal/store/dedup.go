package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hashicorp/go-multierror"
)

// dedupPageSize bounds how many duplicate (form_id, master) groups are
// fetched and resolved per round.
const dedupPageSize = 100

// duplicateCellGroup is one (form_id, master) pair among interior cells that
// has more than one row.
type duplicateCellGroup struct {
	FormID     int32
	Master     string
	IDs        []int32
	IsBaseGame []bool
}

// DeduplicateInteriorCells collapses historical duplicate interior cells
// (grounded on original_source's deduplicate_interior_cells backfill). For
// each (form_id, master) group with more than one row it: picks a canonical
// cell (preferring is_base_game=true), collapses any duplicate plugin_cells a
// broken plugin produced within the group down to the lowest id per
// plugin_id, repoints every remaining plugin_cells reference to the
// canonical cell, then deletes the non-canonical cells. Unlike the original,
// a failure resolving one group does not abort the run: errors accumulate in
// a multierror so the backfill makes as much progress as it can in one
// invocation.
func (s *Store) DeduplicateInteriorCells(ctx context.Context, logger *slog.Logger) error {
	var errs *multierror.Error
	page := 0
	for {
		logger.Info("deduplicating interior cells", "page", page)

		groups, err := s.fetchDuplicateCellGroups(ctx)
		if err != nil {
			return fmt.Errorf("fetch duplicate cell groups: %w", err)
		}
		if len(groups) == 0 {
			break
		}

		resolved := 0
		for _, g := range groups {
			if err := s.resolveDuplicateCellGroup(ctx, logger, g); err != nil {
				errs = multierror.Append(errs, fmt.Errorf("form_id=%d master=%s: %w", g.FormID, g.Master, err))
			} else {
				resolved++
			}
		}
		// Failed groups stay duplicated and are fetched again next round; a
		// page with zero resolutions means no further progress is possible.
		if resolved == 0 {
			break
		}
		page++
	}
	return errs.ErrorOrNil()
}

func (s *Store) fetchDuplicateCellGroups(ctx context.Context) ([]duplicateCellGroup, error) {
	rows, err := s.db.Query(ctx, `
		SELECT form_id, master, array_agg(id), array_agg(is_base_game)
		FROM cells
		WHERE world_id IS NULL
		GROUP BY form_id, master
		HAVING COUNT(*) > 1
		LIMIT $1`,
		dedupPageSize,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []duplicateCellGroup
	for rows.Next() {
		var g duplicateCellGroup
		if err := rows.Scan(&g.FormID, &g.Master, &g.IDs, &g.IsBaseGame); err != nil {
			return nil, fmt.Errorf("scan duplicate cell group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (s *Store) resolveDuplicateCellGroup(ctx context.Context, logger *slog.Logger, g duplicateCellGroup) error {
	chosenID := g.IDs[0]
	for i, isBaseGame := range g.IsBaseGame {
		if isBaseGame {
			chosenID = g.IDs[i]
			break
		}
	}
	logger.Info("choosing canonical cell", "cell_id", chosenID, "duplicates", len(g.IDs))

	deleteTag, err := s.db.Exec(ctx, `
		DELETE FROM plugin_cells
		WHERE id NOT IN (
			SELECT MIN(id) FROM plugin_cells WHERE cell_id = ANY($1) GROUP BY plugin_id
		)
		AND cell_id = ANY($1)`,
		g.IDs,
	)
	if err != nil {
		return fmt.Errorf("collapse duplicate plugin_cells: %w", err)
	}
	logger.Info("collapsed duplicate plugin_cells", "deleted", deleteTag.RowsAffected())

	updateTag, err := s.db.Exec(ctx, `
		UPDATE plugin_cells SET cell_id = $1, updated_at = now() WHERE cell_id = ANY($2)`,
		chosenID, g.IDs,
	)
	if err != nil {
		return fmt.Errorf("repoint plugin_cells: %w", err)
	}
	logger.Info("repointed plugin_cells", "updated", updateTag.RowsAffected())

	cellDeleteTag, err := s.db.Exec(ctx, `
		DELETE FROM cells WHERE id != $1 AND id = ANY($2)`,
		chosenID, g.IDs,
	)
	if err != nil {
		return fmt.Errorf("delete duplicate cells: %w", err)
	}
	logger.Info("deleted duplicate cells", "deleted", cellDeleteTag.RowsAffected())

	return nil
}
