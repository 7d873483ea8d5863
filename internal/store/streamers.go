package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Declared defaults for optional streamer fields. Cache normalization
// leaves empty fetched values unset so these apply instead.
const (
	DefaultBroadcasterType = "user"
	DefaultDescription     = "Twitch streamer"
)

// Streamer is a cached channel profile. Rows are created once on first
// cache fill and never updated afterwards, except the Followed flag.
type Streamer struct {
	ID              int64
	Login           string
	DisplayName     string
	BroadcasterType string
	Description     string
	ProfileImageURL string
	OfflineImageURL string
	Followed        bool
}

const streamerColumns = "id, login, display_name, broadcaster_type, description, profile_image_url, offline_image_url, followed"

// CreateStreamer inserts a new streamer row. Empty optional fields take
// their declared defaults. Returns ErrConflict when the id already exists.
func (s *Store) CreateStreamer(ctx context.Context, st Streamer) error {
	if st.BroadcasterType == "" {
		st.BroadcasterType = DefaultBroadcasterType
	}
	if st.Description == "" {
		st.Description = DefaultDescription
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO streamers (`+streamerColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ID,
		st.Login,
		st.DisplayName,
		st.BroadcasterType,
		st.Description,
		st.ProfileImageURL,
		st.OfflineImageURL,
		boolToInt(st.Followed),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("streamer %d: %w", st.ID, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert streamer: %w", err)
	}
	return nil
}

// StreamerByID fetches a streamer by remote id. Returns ErrNotFound when
// the id is not cached.
func (s *Store) StreamerByID(ctx context.Context, id int64) (*Streamer, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+streamerColumns+` FROM streamers WHERE id = ?`, id)
	st, err := scanStreamer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("streamer %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get streamer: %w", err)
	}
	return st, nil
}

// StreamerByName fetches a streamer whose login or display name matches.
func (s *Store) StreamerByName(ctx context.Context, name string) (*Streamer, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+streamerColumns+` FROM streamers WHERE login = ? OR display_name = ? LIMIT 1`,
		name, name,
	)
	st, err := scanStreamer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("streamer %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get streamer by name: %w", err)
	}
	return st, nil
}

// HasStreamer reports whether a streamer id is cached.
func (s *Store) HasStreamer(ctx context.Context, id int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM streamers WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check streamer: %w", err)
	}
	return true, nil
}

// Streamers returns every cached streamer.
func (s *Store) Streamers(ctx context.Context) ([]*Streamer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+streamerColumns+` FROM streamers`)
	if err != nil {
		return nil, fmt.Errorf("list streamers: %w", err)
	}
	defer rows.Close()

	var streamers []*Streamer
	for rows.Next() {
		st, err := scanStreamer(rows)
		if err != nil {
			return nil, err
		}
		streamers = append(streamers, st)
	}
	return streamers, rows.Err()
}

// FollowedStreamers returns cached streamers with the followed flag set,
// ordered by display name.
func (s *Store) FollowedStreamers(ctx context.Context) ([]*Streamer, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+streamerColumns+` FROM streamers WHERE followed = 1 ORDER BY display_name`,
	)
	if err != nil {
		return nil, fmt.Errorf("list followed streamers: %w", err)
	}
	defer rows.Close()

	var streamers []*Streamer
	for rows.Next() {
		st, err := scanStreamer(rows)
		if err != nil {
			return nil, err
		}
		streamers = append(streamers, st)
	}
	return streamers, rows.Err()
}

// SetFollowed updates the followed flag for one streamer. The flag is the
// only mutable streamer field.
func (s *Store) SetFollowed(ctx context.Context, id int64, followed bool) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE streamers SET followed = ? WHERE id = ?`,
		boolToInt(followed), id,
	)
	if err != nil {
		return fmt.Errorf("set followed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("streamer %d: %w", id, ErrNotFound)
	}
	return nil
}

// MarkAllFollowed sets the followed flag on every cached streamer. Used by
// the initial cache build, which seeds the store from the follow list.
func (s *Store) MarkAllFollowed(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE streamers SET followed = 1`); err != nil {
		return fmt.Errorf("mark all followed: %w", err)
	}
	return nil
}

func scanStreamer(scanner interface{ Scan(dest ...any) error }) (*Streamer, error) {
	var (
		st       Streamer
		followed int
	)
	if err := scanner.Scan(
		&st.ID,
		&st.Login,
		&st.DisplayName,
		&st.BroadcasterType,
		&st.Description,
		&st.ProfileImageURL,
		&st.OfflineImageURL,
		&followed,
	); err != nil {
		return nil, err
	}
	st.Followed = followed != 0
	return &st, nil
}
