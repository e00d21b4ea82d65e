package store

import (
	"context"
	"fmt"
)

// UpsertGame inserts a game or touches its updated_at if it already exists,
// keyed on (nexus_game_id, name).
func (s *Store) UpsertGame(ctx context.Context, name string, nexusGameID int32) (*Game, error) {
	var g Game
	err := s.db.QueryRow(ctx, `
		INSERT INTO games (name, nexus_game_id, created_at, updated_at)
		VALUES ($1, $2, now(), now())
		ON CONFLICT (nexus_game_id, name) DO UPDATE SET (name, updated_at) = (EXCLUDED.name, now())
		RETURNING id, name, nexus_game_id, created_at, updated_at`,
		name, nexusGameID,
	).Scan(&g.ID, &g.Name, &g.NexusGameID, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert game: %w", err)
	}
	return &g, nil
}
