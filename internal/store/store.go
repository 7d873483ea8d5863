// Package store manages the local entity mirror backed by SQLite: cached
// streamer and game records plus the single login credential.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// Sentinel errors returned by store operations.
var (
	// ErrNotFound indicates the requested entity is not in the store.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a create collided with an existing row.
	// Cache fills treat this as "already cached": by the write-once
	// contract the existing row holds equivalent data.
	ErrConflict = errors.New("already exists")
)

// Store manages entity persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the entity database and applies migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) applyMigrations(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS credential (
            id INTEGER PRIMARY KEY,
            login TEXT NOT NULL,
            display_name TEXT NOT NULL,
            profile_image_url TEXT NOT NULL,
            access_token TEXT NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS streamers (
            id INTEGER PRIMARY KEY,
            login TEXT NOT NULL,
            display_name TEXT NOT NULL,
            broadcaster_type TEXT NOT NULL DEFAULT 'user',
            description TEXT NOT NULL DEFAULT 'Twitch streamer',
            profile_image_url TEXT NOT NULL,
            offline_image_url TEXT NOT NULL DEFAULT '',
            followed INTEGER NOT NULL DEFAULT 0
        )`,
		`CREATE TABLE IF NOT EXISTS games (
            id INTEGER PRIMARY KEY,
            name TEXT NOT NULL,
            box_art_url TEXT NOT NULL
        )`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	return nil
}

// ClearEntities removes all cached streamers and games while preserving
// the login credential.
func (s *Store) ClearEntities(ctx context.Context) error {
	for _, table := range []string{"streamers", "games"} {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

// isUniqueViolation reports whether err is a sqlite unique-constraint
// failure, the only conflict class a write-once cache can produce.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
