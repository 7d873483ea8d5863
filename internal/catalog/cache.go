// Package catalog implements the cache-miss-gated entity cache: ids absent
// from the local store are batch-fetched from Helix, normalized, and
// persisted exactly once. Already-cached ids are never re-fetched.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/RaeedAhmed/twitch-py/internal/images"
	"github.com/RaeedAhmed/twitch-py/internal/store"
	"github.com/RaeedAhmed/twitch-py/pkg/helix"
	"github.com/RaeedAhmed/twitch-py/pkg/logging"
)

// Prometheus metrics for cache fills.
var (
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_cache_hits_total",
		Help: "Ids already present in the store at fill time",
	}, []string{"kind"})

	cacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_cache_misses_total",
		Help: "Ids fetched from the remote service",
	}, []string{"kind"})

	cacheFillErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_cache_fill_errors_total",
		Help: "Failed cache fills by kind",
	}, []string{"kind"})
)

// Kind selects the entity variant of a cache fill. Values double as the
// Helix resource name for the kind's batch-lookup endpoint.
type Kind string

const (
	// KindStreamer caches channel profiles via GET /users.
	KindStreamer Kind = "users"

	// KindGame caches categories via GET /games.
	KindGame Kind = "games"
)

// boxArtSize is the concrete box-art resolution substituted into game
// image templates. This size exists for every game; some others do not.
const boxArtSize = "285x380"

// Fetcher issues one batched id lookup. Implemented by
// *pagination.BatchFetcher.
type Fetcher interface {
	FetchByID(ctx context.Context, resource, key string, ids []int64) ([]json.RawMessage, error)
}

// Cache fills the local entity store on demand.
type Cache struct {
	store   *store.Store
	fetcher Fetcher
	mirror  *images.Mirror
	logger  zerolog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithMirror enables local artwork mirroring during cache fills. Mirrored
// entities have their image reference rewritten to the local file path.
func WithMirror(m *images.Mirror) Option {
	return func(c *Cache) { c.mirror = m }
}

// New creates an entity cache over st, fetching misses with fetcher.
func New(st *store.Store, fetcher Fetcher, opts ...Option) *Cache {
	c := &Cache{
		store:   st,
		fetcher: fetcher,
		logger:  logging.NewLogger("catalog"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EnsureCached guarantees every id in ids has a stored entity of the given
// kind. Only cache-misses are fetched; an already-cached id never causes
// network traffic. A fetch or decode failure fails the whole call with no
// partial writes, and a later retry fetches only what is still missing.
func (c *Cache) EnsureCached(ctx context.Context, ids []int64, kind Kind) error {
	ids = dedupe(ids)

	misses, err := c.filterMisses(ctx, ids, kind)
	if err != nil {
		return err
	}
	cacheHits.WithLabelValues(string(kind)).Add(float64(len(ids) - len(misses)))
	if len(misses) == 0 {
		return nil
	}
	cacheMisses.WithLabelValues(string(kind)).Add(float64(len(misses)))

	c.logger.Debug().
		Str("kind", string(kind)).
		Int("requested", len(ids)).
		Int("misses", len(misses)).
		Msg("Filling cache")

	raw, err := c.fetcher.FetchByID(ctx, string(kind), "id", misses)
	if err != nil {
		cacheFillErrors.WithLabelValues(string(kind)).Inc()
		return fmt.Errorf("fetch %s: %w", kind, err)
	}

	switch kind {
	case KindGame:
		return c.fillGames(ctx, raw)
	default:
		return c.fillStreamers(ctx, raw)
	}
}

func (c *Cache) filterMisses(ctx context.Context, ids []int64, kind Kind) ([]int64, error) {
	misses := make([]int64, 0, len(ids))
	for _, id := range ids {
		var (
			cached bool
			err    error
		)
		if kind == KindGame {
			cached, err = c.store.HasGame(ctx, id)
		} else {
			cached, err = c.store.HasStreamer(ctx, id)
		}
		if err != nil {
			return nil, err
		}
		if !cached {
			misses = append(misses, id)
		}
	}
	return misses, nil
}

// streamerRecord is the raw Helix user shape.
type streamerRecord struct {
	ID              string `json:"id"`
	Login           string `json:"login"`
	DisplayName     string `json:"display_name"`
	BroadcasterType string `json:"broadcaster_type"`
	Description     string `json:"description"`
	ProfileImageURL string `json:"profile_image_url"`
	OfflineImageURL string `json:"offline_image_url"`
}

// gameRecord is the raw Helix game shape.
type gameRecord struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	BoxArtURL string `json:"box_art_url"`
}

func (c *Cache) fillStreamers(ctx context.Context, raw []json.RawMessage) error {
	streamers := make([]store.Streamer, 0, len(raw))
	for _, msg := range raw {
		var rec streamerRecord
		if err := json.Unmarshal(msg, &rec); err != nil {
			return &helix.APIError{Class: helix.ClassDecode, Message: "decode user record", Err: err}
		}
		id, err := parseID(rec.ID)
		if err != nil {
			return err
		}
		// Empty optional fields stay unset so the store's declared
		// defaults apply instead of persisting empty strings.
		streamers = append(streamers, store.Streamer{
			ID:              id,
			Login:           rec.Login,
			DisplayName:     rec.DisplayName,
			BroadcasterType: rec.BroadcasterType,
			Description:     rec.Description,
			ProfileImageURL: rec.ProfileImageURL,
			OfflineImageURL: rec.OfflineImageURL,
		})
	}

	if c.mirror != nil {
		art := make([]images.Artwork, 0, len(streamers))
		for _, st := range streamers {
			art = append(art, images.Artwork{ID: st.ID, URL: st.ProfileImageURL})
		}
		local := c.mirror.Download(ctx, string(KindStreamer), art)
		for i := range streamers {
			if path, ok := local[streamers[i].ID]; ok {
				streamers[i].ProfileImageURL = path
			}
		}
	}

	for _, st := range streamers {
		if err := c.store.CreateStreamer(ctx, st); err != nil {
			if errors.Is(err, store.ErrConflict) {
				// Lost a benign fill race; the row already holds
				// equivalent data.
				continue
			}
			return err
		}
	}
	return nil
}

func (c *Cache) fillGames(ctx context.Context, raw []json.RawMessage) error {
	games := make([]store.Game, 0, len(raw))
	for _, msg := range raw {
		var rec gameRecord
		if err := json.Unmarshal(msg, &rec); err != nil {
			return &helix.APIError{Class: helix.ClassDecode, Message: "decode game record", Err: err}
		}
		id, err := parseID(rec.ID)
		if err != nil {
			return err
		}
		games = append(games, store.Game{
			ID:        id,
			Name:      rec.Name,
			BoxArtURL: resolveBoxArt(rec.BoxArtURL),
		})
	}

	if c.mirror != nil {
		art := make([]images.Artwork, 0, len(games))
		for _, g := range games {
			art = append(art, images.Artwork{ID: g.ID, URL: g.BoxArtURL})
		}
		local := c.mirror.Download(ctx, string(KindGame), art)
		for i := range games {
			if path, ok := local[games[i].ID]; ok {
				games[i].BoxArtURL = path
			}
		}
	}

	for _, g := range games {
		if err := c.store.CreateGame(ctx, g); err != nil {
			if errors.Is(err, store.ErrConflict) {
				continue
			}
			return err
		}
	}
	return nil
}

// resolveBoxArt substitutes the concrete size into a templated box-art URL.
func resolveBoxArt(url string) string {
	return strings.ReplaceAll(url, "-{width}x{height}", "-"+boxArtSize)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &helix.APIError{Class: helix.ClassDecode, Message: "non-numeric entity id", Err: err}
	}
	return id, nil
}

// dedupe removes duplicate ids preserving first-occurrence order, so chunk
// partitioning stays deterministic for a given input sequence.
func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
