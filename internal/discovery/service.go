// Package discovery exposes the browse surfaces of the catalog: search,
// top games and streams, live streams of followed channels, past
// broadcasts, and clips. Every surface routes entity lookups through the
// catalog cache before rendering.
package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/RaeedAhmed/twitch-py/internal/catalog"
	"github.com/RaeedAhmed/twitch-py/internal/enrich"
	"github.com/RaeedAhmed/twitch-py/internal/store"
	"github.com/RaeedAhmed/twitch-py/pkg/logging"
)

// Result-count limits per search surface. Channels get fewer rows because
// each carries more data on screen.
const (
	channelSearchLimit  = 5
	categorySearchLimit = 10
)

// Getter issues one GET and returns the data array. Implemented by
// *helix.Client.
type Getter interface {
	Get(ctx context.Context, params string) ([]json.RawMessage, error)
}

// Pager collects a full paginated list. Implemented by *pagination.Pager.
type Pager interface {
	CollectAll(ctx context.Context, params string) ([]json.RawMessage, error)
}

// Fetcher issues one batched id lookup. Implemented by
// *pagination.BatchFetcher.
type Fetcher interface {
	FetchByID(ctx context.Context, resource, key string, ids []int64) ([]json.RawMessage, error)
}

// Catalog fills the entity cache. Implemented by *catalog.Cache.
type Catalog interface {
	EnsureCached(ctx context.Context, ids []int64, kind catalog.Kind) error
}

// Enricher augments live streams. Implemented by *enrich.Enricher.
type Enricher interface {
	Enrich(ctx context.Context, streams []enrich.Stream) ([]enrich.Stream, error)
}

// Service implements the browse surfaces.
type Service struct {
	store    *store.Store
	client   Getter
	pager    Pager
	fetcher  Fetcher
	catalog  Catalog
	enricher Enricher
	clock    clockwork.Clock
	logger   zerolog.Logger
}

// New creates a discovery service.
func New(st *store.Store, client Getter, pager Pager, fetcher Fetcher, cat Catalog, enr Enricher, clock clockwork.Clock) *Service {
	return &Service{
		store:    st,
		client:   client,
		pager:    pager,
		fetcher:  fetcher,
		catalog:  cat,
		enricher: enr,
		clock:    clock,
		logger:   logging.NewLogger("discovery"),
	}
}

// ChannelResult pairs a cached streamer with its live flag from search.
type ChannelResult struct {
	Streamer *store.Streamer
	IsLive   bool
}

type channelSearchRecord struct {
	ID     string `json:"id"`
	IsLive bool   `json:"is_live"`
}

// SearchChannels queries the remote channel search, caches the result ids,
// and returns the cached profiles in remote relevance order.
func (s *Service) SearchChannels(ctx context.Context, query string) ([]ChannelResult, error) {
	raw, err := s.client.Get(ctx, fmt.Sprintf("search/channels?query=%s&first=%d",
		url.QueryEscape(query), channelSearchLimit))
	if err != nil {
		return nil, fmt.Errorf("search channels: %w", err)
	}

	ids := make([]int64, 0, len(raw))
	live := make(map[int64]bool, len(raw))
	for _, msg := range raw {
		var rec channelSearchRecord
		if err := json.Unmarshal(msg, &rec); err != nil {
			return nil, fmt.Errorf("decode channel search record: %w", err)
		}
		id, err := strconv.ParseInt(rec.ID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("non-numeric channel id %q: %w", rec.ID, err)
		}
		ids = append(ids, id)
		live[id] = rec.IsLive
	}

	if err := s.catalog.EnsureCached(ctx, ids, catalog.KindStreamer); err != nil {
		return nil, err
	}

	results := make([]ChannelResult, 0, len(ids))
	for _, id := range ids {
		st, err := s.store.StreamerByID(ctx, id)
		if err != nil {
			return nil, err
		}
		results = append(results, ChannelResult{Streamer: st, IsLive: live[id]})
	}
	return results, nil
}

type idRecord struct {
	ID string `json:"id"`
}

// SearchCategories queries the remote category search, caches the result
// ids, and returns the cached games in remote relevance order.
func (s *Service) SearchCategories(ctx context.Context, query string) ([]*store.Game, error) {
	raw, err := s.client.Get(ctx, fmt.Sprintf("search/categories?query=%s&first=%d",
		url.QueryEscape(query), categorySearchLimit))
	if err != nil {
		return nil, fmt.Errorf("search categories: %w", err)
	}

	ids, err := collectIDs(raw)
	if err != nil {
		return nil, err
	}
	if err := s.catalog.EnsureCached(ctx, ids, catalog.KindGame); err != nil {
		return nil, err
	}
	return s.gamesInOrder(ctx, ids)
}

// TopGames returns the platform's top categories by viewer count,
// preserving the remote ranking.
func (s *Service) TopGames(ctx context.Context) ([]*store.Game, error) {
	raw, err := s.client.Get(ctx, "games/top?first=100")
	if err != nil {
		return nil, fmt.Errorf("top games: %w", err)
	}

	ids, err := collectIDs(raw)
	if err != nil {
		return nil, err
	}
	if err := s.catalog.EnsureCached(ctx, ids, catalog.KindGame); err != nil {
		return nil, err
	}
	return s.gamesInOrder(ctx, ids)
}

// TopStreams returns the platform's top live streams, enriched.
func (s *Service) TopStreams(ctx context.Context) ([]enrich.Stream, error) {
	raw, err := s.client.Get(ctx, "streams?first=50")
	if err != nil {
		return nil, fmt.Errorf("top streams: %w", err)
	}
	streams, err := enrich.ParseStreams(raw)
	if err != nil {
		return nil, err
	}
	return s.enricher.Enrich(ctx, streams)
}

// StreamsByGame returns the top live streams under one category, enriched.
func (s *Service) StreamsByGame(ctx context.Context, gameID int64) ([]enrich.Stream, error) {
	if err := s.catalog.EnsureCached(ctx, []int64{gameID}, catalog.KindGame); err != nil {
		return nil, err
	}
	raw, err := s.client.Get(ctx, fmt.Sprintf("streams?first=50&game_id=%d", gameID))
	if err != nil {
		return nil, fmt.Errorf("streams by game: %w", err)
	}
	streams, err := enrich.ParseStreams(raw)
	if err != nil {
		return nil, err
	}
	return s.enricher.Enrich(ctx, streams)
}

// LiveStreams batch-fetches live sessions for the given streamer ids and
// enriches them. Channels that are offline return no session and simply
// drop out of the result.
func (s *Service) LiveStreams(ctx context.Context, ids []int64) ([]enrich.Stream, error) {
	raw, err := s.fetcher.FetchByID(ctx, "streams", "user_id", ids)
	if err != nil {
		return nil, fmt.Errorf("live streams: %w", err)
	}
	streams, err := enrich.ParseStreams(raw)
	if err != nil {
		return nil, err
	}
	return s.enricher.Enrich(ctx, streams)
}

// gamesInOrder resolves cached games preserving the order of ids. An id
// that failed to cache is skipped rather than failing the page.
func (s *Service) gamesInOrder(ctx context.Context, ids []int64) ([]*store.Game, error) {
	games := make([]*store.Game, 0, len(ids))
	for _, id := range ids {
		g, err := s.store.GameByID(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Warn().Int64("game_id", id).Msg("Game missing after cache fill")
			continue
		}
		if err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, nil
}

func collectIDs(raw []json.RawMessage) ([]int64, error) {
	ids := make([]int64, 0, len(raw))
	for _, msg := range raw {
		var rec idRecord
		if err := json.Unmarshal(msg, &rec); err != nil {
			return nil, fmt.Errorf("decode id record: %w", err)
		}
		id, err := strconv.ParseInt(rec.ID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("non-numeric id %q: %w", rec.ID, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
