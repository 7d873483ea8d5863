package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Game is a cached category record. Write-once, never mutated.
type Game struct {
	ID        int64
	Name      string
	BoxArtURL string
}

const gameColumns = "id, name, box_art_url"

// CreateGame inserts a new game row. Returns ErrConflict when the id
// already exists.
func (s *Store) CreateGame(ctx context.Context, g Game) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO games (`+gameColumns+`) VALUES (?, ?, ?)`,
		g.ID, g.Name, g.BoxArtURL,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("game %d: %w", g.ID, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert game: %w", err)
	}
	return nil
}

// GameByID fetches a game by remote id. Returns ErrNotFound when the id
// is not cached.
func (s *Store) GameByID(ctx context.Context, id int64) (*Game, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games WHERE id = ?`, id)
	g, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("game %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get game: %w", err)
	}
	return g, nil
}

// HasGame reports whether a game id is cached.
func (s *Store) HasGame(ctx context.Context, id int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM games WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check game: %w", err)
	}
	return true, nil
}

// GamesByIDs returns the cached games among ids, keyed by id. Missing ids
// are simply absent from the result.
func (s *Store) GamesByIDs(ctx context.Context, ids []int64) (map[int64]*Game, error) {
	games := make(map[int64]*Game, len(ids))
	if len(ids) == 0 {
		return games, nil
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+gameColumns+` FROM games WHERE id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query games: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games[g.ID] = g
	}
	return games, rows.Err()
}

func scanGame(scanner interface{ Scan(dest ...any) error }) (*Game, error) {
	var g Game
	if err := scanner.Scan(&g.ID, &g.Name, &g.BoxArtURL); err != nil {
		return nil, err
	}
	return &g, nil
}
