package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "data.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestCreateStreamer_Defaults(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	err := st.CreateStreamer(ctx, Streamer{
		ID:          1,
		Login:       "alpha",
		DisplayName: "Alpha",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	got, err := st.StreamerByID(ctx, 1)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got.BroadcasterType != DefaultBroadcasterType {
		t.Errorf("Expected default broadcaster type, got %q", got.BroadcasterType)
	}
	if got.Description != DefaultDescription {
		t.Errorf("Expected default description, got %q", got.Description)
	}
	if got.Followed {
		t.Error("New streamers must not start followed")
	}
}

func TestCreateStreamer_Conflict(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	first := Streamer{ID: 1, Login: "alpha", DisplayName: "Alpha"}
	if err := st.CreateStreamer(ctx, first); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	err := st.CreateStreamer(ctx, Streamer{ID: 1, Login: "other", DisplayName: "Other"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("Expected ErrConflict, got %v", err)
	}

	// The original row must be untouched.
	got, err := st.StreamerByID(ctx, 1)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got.Login != "alpha" {
		t.Errorf("Expected original row to survive, got login %q", got.Login)
	}
}

func TestStreamerByID_NotFound(t *testing.T) {
	st := openTestStore(t)

	_, err := st.StreamerByID(context.Background(), 99)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestStreamerByName(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.CreateStreamer(ctx, Streamer{ID: 1, Login: "alpha", DisplayName: "AlphaPrime"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	for _, name := range []string{"alpha", "AlphaPrime"} {
		got, err := st.StreamerByName(ctx, name)
		if err != nil {
			t.Fatalf("Lookup by %q failed: %v", name, err)
		}
		if got.ID != 1 {
			t.Errorf("Lookup by %q returned id %d", name, got.ID)
		}
	}

	if _, err := st.StreamerByName(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSetFollowed(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.CreateStreamer(ctx, Streamer{ID: 1, Login: "alpha", DisplayName: "Alpha"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if err := st.SetFollowed(ctx, 1, true); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	got, err := st.StreamerByID(ctx, 1)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !got.Followed {
		t.Error("Expected followed flag to be set")
	}

	if err := st.SetFollowed(ctx, 99, true); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestFollowedStreamers_Order(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	seed := []Streamer{
		{ID: 1, Login: "c", DisplayName: "Charlie", Followed: true},
		{ID: 2, Login: "a", DisplayName: "Alpha", Followed: true},
		{ID: 3, Login: "b", DisplayName: "Bravo", Followed: false},
	}
	for _, s := range seed {
		if err := st.CreateStreamer(ctx, s); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}

	got, err := st.FollowedStreamers(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 followed streamers, got %d", len(got))
	}
	if got[0].DisplayName != "Alpha" || got[1].DisplayName != "Charlie" {
		t.Errorf("Expected display-name order, got %q then %q", got[0].DisplayName, got[1].DisplayName)
	}
}

func TestGames(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	game := Game{ID: 10, Name: "Chess", BoxArtURL: "https://example.com/chess-285x380.jpg"}
	if err := st.CreateGame(ctx, game); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if err := st.CreateGame(ctx, game); !errors.Is(err, ErrConflict) {
		t.Errorf("Expected ErrConflict, got %v", err)
	}

	got, err := st.GameByID(ctx, 10)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got.Name != "Chess" {
		t.Errorf("Expected Chess, got %q", got.Name)
	}

	if _, err := st.GameByID(ctx, 11); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	ok, err := st.HasGame(ctx, 10)
	if err != nil || !ok {
		t.Errorf("Expected HasGame true, got %v %v", ok, err)
	}

	games, err := st.GamesByIDs(ctx, []int64{10, 11})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(games) != 1 || games[10] == nil {
		t.Errorf("Expected only cached ids in result, got %v", games)
	}
}

func TestAccountLifecycle(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if _, err := st.Account(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound before login, got %v", err)
	}

	first := Account{ID: 42, Login: "me", DisplayName: "Me", AccessToken: "tok1"}
	if err := st.SaveAccount(ctx, first); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// Saving again replaces rather than accumulates.
	second := Account{ID: 43, Login: "other", DisplayName: "Other", AccessToken: "tok2"}
	if err := st.SaveAccount(ctx, second); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	got, err := st.Account(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got.ID != 43 || got.AccessToken != "tok2" {
		t.Errorf("Expected the replacing account, got %+v", got)
	}

	cred, err := st.Credential(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cred.UserID != 43 || cred.Token != "tok2" {
		t.Errorf("Unexpected credential %+v", cred)
	}

	if err := st.DeleteAccount(ctx); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := st.Account(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after logout, got %v", err)
	}
}

func TestClearEntities_PreservesCredential(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.SaveAccount(ctx, Account{ID: 42, Login: "me", DisplayName: "Me", AccessToken: "tok"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := st.CreateStreamer(ctx, Streamer{ID: 1, Login: "alpha", DisplayName: "Alpha"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := st.CreateGame(ctx, Game{ID: 10, Name: "Chess"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if err := st.ClearEntities(ctx); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if _, err := st.StreamerByID(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected streamers cleared, got %v", err)
	}
	if _, err := st.GameByID(ctx, 10); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected games cleared, got %v", err)
	}
	if _, err := st.Account(ctx); err != nil {
		t.Errorf("Expected credential to survive, got %v", err)
	}
}
