package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/RaeedAhmed/twitch-py/internal/catalog"
	"github.com/RaeedAhmed/twitch-py/internal/store"
)

// fakeCatalog records fills and optionally fails one kind. Entities are
// pre-seeded into the store by each test, so the fill itself is a no-op.
type fakeCatalog struct {
	mu      sync.Mutex
	calls   map[catalog.Kind][][]int64
	gameErr error
	userErr error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{calls: make(map[catalog.Kind][][]int64)}
}

func (f *fakeCatalog) EnsureCached(ctx context.Context, ids []int64, kind catalog.Kind) error {
	f.mu.Lock()
	f.calls[kind] = append(f.calls[kind], ids)
	f.mu.Unlock()

	if kind == catalog.KindGame {
		return f.gameErr
	}
	return f.userErr
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "data.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func testClock() clockwork.Clock {
	return clockwork.NewFakeClockAt(time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC))
}

func TestParseStreams(t *testing.T) {
	raw := []json.RawMessage{
		json.RawMessage(`{"id":"s1","user_id":"1","user_name":"Alpha","game_id":"10","viewer_count":50,"started_at":"2024-01-02T01:00:00Z","thumbnail_url":"https://example.com/live-{width}x{height}.jpg"}`),
		json.RawMessage(`{"id":"s2","user_id":"2","user_name":"Bravo","game_id":"","viewer_count":10}`),
	}

	streams, err := ParseStreams(raw)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(streams) != 2 {
		t.Fatalf("Expected 2 streams, got %d", len(streams))
	}
	if streams[0].UserID != 1 || streams[0].GameID != 10 {
		t.Errorf("Unexpected ids %+v", streams[0])
	}
	if streams[1].GameID != 0 {
		t.Errorf("Expected zero game id for empty string, got %d", streams[1].GameID)
	}
}

func TestParseStreams_BadUserID(t *testing.T) {
	raw := []json.RawMessage{json.RawMessage(`{"id":"s1","user_id":"abc"}`)}
	if _, err := ParseStreams(raw); err == nil {
		t.Fatal("Expected error for non-numeric user id")
	}
}

func TestEnrich(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.CreateStreamer(ctx, store.Streamer{ID: 1, Login: "alpha", DisplayName: "Alpha", ProfileImageURL: "prof1"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := st.CreateGame(ctx, store.Game{ID: 10, Name: "Chess", BoxArtURL: "box10"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	enricher := New(st, newFakeCatalog(), testClock())
	streams := []Stream{{
		ID:           "s1",
		UserID:       1,
		UserName:     "Alpha",
		GameID:       10,
		ViewerCount:  50,
		StartedAt:    "2024-01-02T01:30:00Z",
		ThumbnailURL: "https://example.com/live-{width}x{height}.jpg",
	}}

	got, err := enricher.Enrich(ctx, streams)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected 1 stream, got %d", len(got))
	}

	s := got[0]
	if s.ProfileImageURL != "prof1" {
		t.Errorf("ProfileImageURL = %q", s.ProfileImageURL)
	}
	if s.BoxArtURL != "box10" {
		t.Errorf("BoxArtURL = %q", s.BoxArtURL)
	}
	if s.Uptime != "1h30m" {
		t.Errorf("Uptime = %q, want 1h30m", s.Uptime)
	}
	if s.ThumbnailURL != "https://example.com/live.jpg" {
		t.Errorf("ThumbnailURL = %q", s.ThumbnailURL)
	}
}

func TestEnrich_MissingGameGetsDefaultArt(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.CreateStreamer(ctx, store.Streamer{ID: 1, Login: "alpha", DisplayName: "Alpha", ProfileImageURL: "prof1"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	tests := []struct {
		name   string
		stream Stream
	}{
		{
			name:   "no category at all",
			stream: Stream{ID: "s1", UserID: 1, StartedAt: "2024-01-02T01:00:00Z"},
		},
		{
			name:   "category not cached",
			stream: Stream{ID: "s2", UserID: 1, GameID: 999, StartedAt: "2024-01-02T01:00:00Z"},
		},
	}

	enricher := New(st, newFakeCatalog(), testClock())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := enricher.Enrich(ctx, []Stream{tt.stream})
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got[0].BoxArtURL != DefaultBoxArtURL {
				t.Errorf("BoxArtURL = %q, want default", got[0].BoxArtURL)
			}
		})
	}
}

func TestEnrich_GameFillFailureDegrades(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.CreateStreamer(ctx, store.Streamer{ID: 1, Login: "alpha", DisplayName: "Alpha"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	cat := newFakeCatalog()
	cat.gameErr = errors.New("boom")

	enricher := New(st, cat, testClock())
	got, err := enricher.Enrich(ctx, []Stream{{ID: "s1", UserID: 1, GameID: 10, StartedAt: "2024-01-02T01:00:00Z"}})
	if err != nil {
		t.Fatalf("Expected game fill failure to degrade, got %v", err)
	}
	if got[0].BoxArtURL != DefaultBoxArtURL {
		t.Errorf("BoxArtURL = %q, want default", got[0].BoxArtURL)
	}
}

func TestEnrich_UserFillFailureFatal(t *testing.T) {
	st := openTestStore(t)

	cat := newFakeCatalog()
	cat.userErr = errors.New("boom")

	enricher := New(st, cat, testClock())
	_, err := enricher.Enrich(context.Background(), []Stream{{ID: "s1", UserID: 1}})
	if err == nil {
		t.Fatal("Expected user fill failure to surface")
	}
}

func TestEnrich_SortsByViewersDescending(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	for id := int64(1); id <= 3; id++ {
		if err := st.CreateStreamer(ctx, store.Streamer{ID: id, Login: string(rune('a' + id)), DisplayName: "S"}); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}

	streams := []Stream{
		{ID: "low", UserID: 1, ViewerCount: 5, StartedAt: "2024-01-02T01:00:00Z"},
		{ID: "high", UserID: 2, ViewerCount: 100, StartedAt: "2024-01-02T01:00:00Z"},
		{ID: "tie-first", UserID: 3, ViewerCount: 5, StartedAt: "2024-01-02T01:00:00Z"},
	}

	enricher := New(st, newFakeCatalog(), testClock())
	got, err := enricher.Enrich(ctx, streams)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	order := []string{got[0].ID, got[1].ID, got[2].ID}
	want := []string{"high", "low", "tie-first"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("Expected stable descending order %v, got %v", want, order)
		}
	}
}
