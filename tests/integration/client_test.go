package integration

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/RaeedAhmed/twitch-py/internal/catalog"
	"github.com/RaeedAhmed/twitch-py/internal/follows"
	"github.com/RaeedAhmed/twitch-py/internal/store"
	"github.com/RaeedAhmed/twitch-py/internal/testutil"
	"github.com/RaeedAhmed/twitch-py/pkg/helix"
	"github.com/RaeedAhmed/twitch-py/pkg/pagination"
)

// setupPipeline wires a real store, client, fetcher, and catalog against a
// mock Helix server.
func setupPipeline(t *testing.T) (*testutil.MockHelix, *store.Store, *helix.Client, *catalog.Cache) {
	t.Helper()

	mock := testutil.NewMockHelix()
	t.Cleanup(mock.Close)

	st, err := store.Open(filepath.Join(t.TempDir(), "data.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	client, err := helix.New(helix.Config{
		Endpoint:   mock.URL(),
		ClientID:   "test-client-id",
		Tokens:     helix.StaticToken{UserID: 42, Token: "test-token"},
		MaxRetries: 1,
	})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	fetcher := pagination.NewBatchFetcher(client, helix.MaxBatchIDs)
	cat := catalog.New(st, fetcher)

	return mock, st, client, cat
}

func TestRequestCarriesCredentialHeaders(t *testing.T) {
	mock, _, client, _ := setupPipeline(t)

	if _, err := client.Get(context.Background(), "users?id=1"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if mock.LastAuthHeader != "Bearer test-token" {
		t.Errorf("Authorization = %q, expected %q", mock.LastAuthHeader, "Bearer test-token")
	}
	if mock.LastClientID != "test-client-id" {
		t.Errorf("Client-ID = %q, expected %q", mock.LastClientID, "test-client-id")
	}
}

func TestCacheFillFetchesEachIDOnce(t *testing.T) {
	mock, st, _, cat := setupPipeline(t)
	ctx := context.Background()

	mock.SetData("/users",
		`{"id":"1","login":"alpha","display_name":"Alpha","profile_image_url":"https://cdn/alpha.png"}`,
		`{"id":"2","login":"beta","display_name":"Beta","broadcaster_type":"partner","description":"Speedruns"}`,
	)

	if err := cat.EnsureCached(ctx, []int64{1, 2}, catalog.KindStreamer); err != nil {
		t.Fatalf("First fill failed: %v", err)
	}
	if err := cat.EnsureCached(ctx, []int64{1, 2}, catalog.KindStreamer); err != nil {
		t.Fatalf("Second fill failed: %v", err)
	}

	if got := mock.GetPathCount("/users"); got != 1 {
		t.Errorf("Users endpoint hit %d times, expected 1", got)
	}

	alpha, err := st.StreamerByID(ctx, 1)
	if err != nil {
		t.Fatalf("StreamerByID failed: %v", err)
	}
	if alpha.Login != "alpha" || alpha.DisplayName != "Alpha" {
		t.Errorf("Unexpected streamer: %+v", alpha)
	}
	if alpha.BroadcasterType != "user" {
		t.Errorf("BroadcasterType = %q, expected default %q", alpha.BroadcasterType, "user")
	}
}

func TestGameFillResolvesBoxArtTemplate(t *testing.T) {
	mock, st, _, cat := setupPipeline(t)
	ctx := context.Background()

	mock.SetData("/games",
		`{"id":"10","name":"Chess","box_art_url":"https://cdn/chess-{width}x{height}.jpg"}`,
	)

	if err := cat.EnsureCached(ctx, []int64{10}, catalog.KindGame); err != nil {
		t.Fatalf("Fill failed: %v", err)
	}

	game, err := st.GameByID(ctx, 10)
	if err != nil {
		t.Fatalf("GameByID failed: %v", err)
	}
	if game.BoxArtURL != "https://cdn/chess-285x380.jpg" {
		t.Errorf("BoxArtURL = %q, expected resolved 285x380 variant", game.BoxArtURL)
	}
}

func TestFollowReconciliationConverges(t *testing.T) {
	mock, st, client, cat := setupPipeline(t)
	ctx := context.Background()

	if err := st.SaveAccount(ctx, store.Account{ID: 42, Login: "me", AccessToken: "test-token"}); err != nil {
		t.Fatalf("SaveAccount failed: %v", err)
	}

	// Locally followed but absent from the remote set: must be unfollowed.
	if err := st.CreateStreamer(ctx, store.Streamer{ID: 3, Login: "gamma", DisplayName: "Gamma", Followed: true}); err != nil {
		t.Fatalf("CreateStreamer failed: %v", err)
	}

	mock.SetHandler("/users/follows", testutil.PagingHandler(
		testutil.PagedResponse("c1", `{"to_id":"1"}`),
		map[string]testutil.MockResponse{
			"c1": testutil.DataResponse(`{"to_id":"2"}`),
		},
	))
	mock.SetData("/users",
		`{"id":"1","login":"alpha","display_name":"Alpha"}`,
		`{"id":"2","login":"beta","display_name":"Beta"}`,
	)

	syncer := follows.New(st, pagination.NewPager(client), client, cat)
	remote, err := syncer.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if len(remote) != 2 {
		t.Fatalf("Remote set size = %d, expected 2", len(remote))
	}

	followed, err := st.FollowedStreamers(ctx)
	if err != nil {
		t.Fatalf("FollowedStreamers failed: %v", err)
	}
	if len(followed) != 2 {
		t.Fatalf("Followed count = %d, expected 2", len(followed))
	}
	for _, s := range followed {
		if s.ID != 1 && s.ID != 2 {
			t.Errorf("Unexpected followed streamer %d", s.ID)
		}
	}

	gamma, err := st.StreamerByID(ctx, 3)
	if err != nil {
		t.Fatalf("StreamerByID failed: %v", err)
	}
	if gamma.Followed {
		t.Error("Streamer absent from remote set is still marked followed")
	}
}

func TestPaginationCollectsAllPages(t *testing.T) {
	mock, _, client, _ := setupPipeline(t)

	mock.SetHandler("/videos", testutil.PagingHandler(
		testutil.PagedResponse("p2", `{"id":"v1"}`, `{"id":"v2"}`),
		map[string]testutil.MockResponse{
			"p2": testutil.DataResponse(`{"id":"v3"}`),
		},
	))

	pager := pagination.NewPager(client)
	records, err := pager.CollectAll(context.Background(), "videos?user_id=42&first=100")
	if err != nil {
		t.Fatalf("CollectAll failed: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("Collected %d records, expected 3", len(records))
	}
	if got := mock.GetPathCount("/videos"); got != 2 {
		t.Errorf("Videos endpoint hit %d times, expected 2", got)
	}
}

func TestUnauthorizedSurfacesWithoutRetry(t *testing.T) {
	mock, _, client, _ := setupPipeline(t)

	mock.SetResponse("/users", testutil.NewUnauthorizedResponse())

	_, err := client.Get(context.Background(), "users?id=1")
	if err == nil {
		t.Fatal("expected error from 401 response")
	}
	if !helix.IsTransport(err) {
		t.Errorf("error = %v, expected transport class", err)
	}
	if got := mock.GetPathCount("/users"); got != 1 {
		t.Errorf("Users endpoint hit %d times, expected 1 (no retry on 4xx)", got)
	}
}

func TestRateLimitStateTracksResponseHeaders(t *testing.T) {
	mock, _, client, _ := setupPipeline(t)

	mock.SetResponse("/streams", testutil.MockResponse{
		StatusCode: 200,
		Body:       `{"data":[]}`,
		Headers: map[string]string{
			"Content-Type":        "application/json; charset=utf-8",
			"Ratelimit-Limit":     "800",
			"Ratelimit-Remaining": "754",
		},
	})

	if _, err := client.Get(context.Background(), "streams?first=50"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	state := client.RateLimit()
	if state.Limit != 800 || state.Remaining != 754 {
		t.Errorf("RateLimit state = %+v, expected limit 800 remaining 754", state)
	}
}
