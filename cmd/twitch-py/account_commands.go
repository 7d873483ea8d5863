package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/RaeedAhmed/twitch-py/internal/catalog"
	"github.com/RaeedAhmed/twitch-py/internal/follows"
	"github.com/RaeedAhmed/twitch-py/internal/images"
	"github.com/RaeedAhmed/twitch-py/internal/store"
	"github.com/RaeedAhmed/twitch-py/pkg/helix"
	"github.com/RaeedAhmed/twitch-py/pkg/pagination"
)

func newLoginCommand(c *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "login <token>",
		Short: "Store an OAuth token and build the initial channel cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(c, args[0])
		},
	}
}

// runLogin validates the token against the users endpoint, stores the
// resulting identity, and seeds the cache with the followed channels.
// It wires its own client because the stored credential does not exist yet.
func runLogin(c *commandContext, token string) error {
	cfg, st, err := c.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	client, err := helix.New(helix.Config{
		Endpoint: cfg.API.Endpoint,
		ClientID: cfg.API.ClientID,
		Tokens:   helix.StaticToken{Token: token},
	})
	if err != nil {
		return err
	}

	ctx := context.Background()
	raw, err := client.Get(ctx, "users")
	if err != nil {
		return fmt.Errorf("validate token: %w", err)
	}
	if len(raw) == 0 {
		return errors.New("token is valid but resolves to no user")
	}

	var rec struct {
		ID              string `json:"id"`
		Login           string `json:"login"`
		DisplayName     string `json:"display_name"`
		ProfileImageURL string `json:"profile_image_url"`
	}
	if err := json.Unmarshal(raw[0], &rec); err != nil {
		return fmt.Errorf("decode user record: %w", err)
	}
	id, err := strconv.ParseInt(rec.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("non-numeric user id %q: %w", rec.ID, err)
	}

	if err := st.SaveAccount(ctx, store.Account{
		ID:              id,
		Login:           rec.Login,
		DisplayName:     rec.DisplayName,
		ProfileImageURL: rec.ProfileImageURL,
		AccessToken:     token,
	}); err != nil {
		return err
	}

	pager := pagination.NewPager(client)
	fetcher := pagination.NewBatchFetcher(client, helix.MaxBatchIDs)
	cat := catalog.New(st, fetcher)
	if _, err := follows.New(st, pager, client, cat).Bootstrap(ctx); err != nil {
		return fmt.Errorf("build follow cache: %w", err)
	}

	fmt.Printf("Logged in as %s\n", rec.DisplayName)
	return nil
}

func newLogoutCommand(c *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored credential and cached entities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, st, err := c.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := context.Background()
			if err := st.DeleteAccount(ctx); err != nil && !errors.Is(err, store.ErrNotFound) {
				return err
			}
			if err := st.ClearEntities(ctx); err != nil {
				return err
			}
			if err := images.NewMirror(cfg.ImageDir()).Clear(); err != nil {
				return err
			}
			fmt.Println("Logged out")
			return nil
		},
	}
}
