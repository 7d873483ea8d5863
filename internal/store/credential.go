package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/RaeedAhmed/twitch-py/pkg/helix"
)

// Account is the single authenticated identity. Exactly one row is live at
// a time: created at login, read by every remote call, removed at logout.
type Account struct {
	ID              int64
	Login           string
	DisplayName     string
	ProfileImageURL string
	AccessToken     string
}

// SaveAccount stores the login identity, replacing any previous one.
func (s *Store) SaveAccount(ctx context.Context, a Account) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save account: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM credential`); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO credential (id, login, display_name, profile_image_url, access_token)
         VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.Login, a.DisplayName, a.ProfileImageURL, a.AccessToken,
	); err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	return tx.Commit()
}

// Account returns the stored login identity. Returns ErrNotFound when no
// user is logged in.
func (s *Store) Account(ctx context.Context) (*Account, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, login, display_name, profile_image_url, access_token FROM credential LIMIT 1`,
	)
	var a Account
	err := row.Scan(&a.ID, &a.Login, &a.DisplayName, &a.ProfileImageURL, &a.AccessToken)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &a, nil
}

// DeleteAccount removes the stored credential.
func (s *Store) DeleteAccount(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM credential`); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

// Credential implements helix.TokenSource against the stored account.
func (s *Store) Credential(ctx context.Context) (helix.Credential, error) {
	a, err := s.Account(ctx)
	if err != nil {
		return helix.Credential{}, err
	}
	return helix.Credential{UserID: a.ID, Token: a.AccessToken}, nil
}
