// Package enrich joins live-session data against the entity cache to build
// display-ready stream records.
package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/RaeedAhmed/twitch-py/internal/catalog"
	"github.com/RaeedAhmed/twitch-py/internal/store"
	"github.com/RaeedAhmed/twitch-py/pkg/logging"
)

// DefaultBoxArtURL is the fixed fallback shown when a stream's category is
// absent or could not be cached.
const DefaultBoxArtURL = "https://static-cdn.jtvnw.net/ttv-static/404_boxart.jpg"

// Stream is one live broadcast, optionally augmented with cached entity
// data. GameID is zero when the session carries no category.
type Stream struct {
	ID           string
	UserID       int64
	UserLogin    string
	UserName     string
	GameID       int64
	GameName     string
	Title        string
	ViewerCount  int
	StartedAt    string
	Language     string
	ThumbnailURL string

	// Derived during enrichment.
	BoxArtURL       string
	ProfileImageURL string
	Uptime          string
}

// streamRecord is the raw Helix stream shape; ids arrive as strings.
type streamRecord struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	UserLogin    string `json:"user_login"`
	UserName     string `json:"user_name"`
	GameID       string `json:"game_id"`
	GameName     string `json:"game_name"`
	Title        string `json:"title"`
	ViewerCount  int    `json:"viewer_count"`
	StartedAt    string `json:"started_at"`
	Language     string `json:"language"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// ParseStreams decodes raw Helix stream records.
func ParseStreams(raw []json.RawMessage) ([]Stream, error) {
	streams := make([]Stream, 0, len(raw))
	for _, msg := range raw {
		var rec streamRecord
		if err := json.Unmarshal(msg, &rec); err != nil {
			return nil, fmt.Errorf("decode stream record: %w", err)
		}
		userID, err := strconv.ParseInt(rec.UserID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("non-numeric stream user id %q: %w", rec.UserID, err)
		}
		var gameID int64
		if rec.GameID != "" {
			gameID, err = strconv.ParseInt(rec.GameID, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("non-numeric stream game id %q: %w", rec.GameID, err)
			}
		}
		streams = append(streams, Stream{
			ID:           rec.ID,
			UserID:       userID,
			UserLogin:    rec.UserLogin,
			UserName:     rec.UserName,
			GameID:       gameID,
			GameName:     rec.GameName,
			Title:        rec.Title,
			ViewerCount:  rec.ViewerCount,
			StartedAt:    rec.StartedAt,
			Language:     rec.Language,
			ThumbnailURL: rec.ThumbnailURL,
		})
	}
	return streams, nil
}

// Catalog fills the entity cache. Implemented by *catalog.Cache.
type Catalog interface {
	EnsureCached(ctx context.Context, ids []int64, kind catalog.Kind) error
}

// Enricher augments streams with cached entity data.
type Enricher struct {
	store   *store.Store
	catalog Catalog
	clock   clockwork.Clock
	logger  zerolog.Logger
}

// New creates an enricher. clock supplies the wall time used for uptime
// computation; pass a fake clock in tests.
func New(st *store.Store, cat Catalog, clock clockwork.Clock) *Enricher {
	return &Enricher{
		store:   st,
		catalog: cat,
		clock:   clock,
		logger:  logging.NewLogger("enrich"),
	}
}

// Enrich caches every referenced profile and category, resolves artwork,
// computes uptime, detemplates thumbnails, and sorts the result descending
// by viewer count (stable, so remote order breaks ties). A category that
// cannot be fetched degrades to the default box art; a missing profile is
// an error since the profile fill is required to succeed.
func (e *Enricher) Enrich(ctx context.Context, streams []Stream) ([]Stream, error) {
	userIDs := make([]int64, 0, len(streams))
	gameIDs := make([]int64, 0, len(streams))
	for _, s := range streams {
		userIDs = append(userIDs, s.UserID)
		if s.GameID != 0 {
			gameIDs = append(gameIDs, s.GameID)
		}
	}

	// The two fills touch disjoint entity kinds, so they run together.
	var (
		wg               sync.WaitGroup
		userErr, gameErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		userErr = e.catalog.EnsureCached(ctx, userIDs, catalog.KindStreamer)
	}()
	go func() {
		defer wg.Done()
		gameErr = e.catalog.EnsureCached(ctx, gameIDs, catalog.KindGame)
	}()
	wg.Wait()

	if userErr != nil {
		return nil, userErr
	}
	if gameErr != nil {
		// Missing categories degrade to placeholder art; one bad fill
		// must not blank the whole stream list.
		e.logger.Warn().Err(gameErr).Msg("Game cache fill failed, using placeholder art")
	}

	enriched := make([]Stream, len(streams))
	for i, s := range streams {
		profile, err := e.store.StreamerByID(ctx, s.UserID)
		if err != nil {
			return nil, err
		}
		s.ProfileImageURL = profile.ProfileImageURL

		s.BoxArtURL = DefaultBoxArtURL
		if s.GameID != 0 {
			if game, err := e.store.GameByID(ctx, s.GameID); err == nil {
				s.BoxArtURL = game.BoxArtURL
			} else if !errors.Is(err, store.ErrNotFound) {
				return nil, err
			}
		}

		if uptime, err := FormatElapsed(e.clock, s.StartedAt); err == nil {
			s.Uptime = uptime
		} else {
			e.logger.Warn().
				Err(err).
				Str("started_at", s.StartedAt).
				Msg("Unparseable stream start time")
		}

		s.ThumbnailURL = strings.ReplaceAll(s.ThumbnailURL, "-{width}x{height}", "")
		enriched[i] = s
	}

	sort.SliceStable(enriched, func(i, j int) bool {
		return enriched[i].ViewerCount > enriched[j].ViewerCount
	})
	return enriched, nil
}
