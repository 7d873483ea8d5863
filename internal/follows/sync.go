// Package follows reconciles the locally cached followed flags against the
// remote follow-edge set and issues the minimal toggle operations needed to
// converge.
package follows

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/RaeedAhmed/twitch-py/internal/catalog"
	"github.com/RaeedAhmed/twitch-py/internal/store"
	"github.com/RaeedAhmed/twitch-py/pkg/logging"
)

// Prometheus metrics for follow reconciliation.
var (
	followToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "follow_toggles_total",
		Help: "Follow state toggles issued by direction",
	}, []string{"direction"})

	followToggleErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "follow_toggle_errors_total",
		Help: "Follow toggle calls that failed remotely",
	})
)

// Pager collects a full paginated list. Implemented by *pagination.Pager.
type Pager interface {
	CollectAll(ctx context.Context, params string) ([]json.RawMessage, error)
}

// Toggler issues bodyless mutation requests. Implemented by *helix.Client.
type Toggler interface {
	Send(ctx context.Context, method, params string) error
}

// Catalog fills the entity cache. Implemented by *catalog.Cache.
type Catalog interface {
	EnsureCached(ctx context.Context, ids []int64, kind catalog.Kind) error
}

// Synchronizer diffs remote follow edges against cached flags.
//
// Concurrent Reconcile calls for the same identity are not supported;
// callers serialize them.
type Synchronizer struct {
	store   *store.Store
	pager   Pager
	client  Toggler
	catalog Catalog
	logger  zerolog.Logger
}

// New creates a follow synchronizer.
func New(st *store.Store, pager Pager, client Toggler, cat Catalog) *Synchronizer {
	return &Synchronizer{
		store:   st,
		pager:   pager,
		client:  client,
		catalog: cat,
		logger:  logging.NewLogger("follows"),
	}
}

// followEdge is the raw Helix follow-edge shape.
type followEdge struct {
	ToID string `json:"to_id"`
}

// FetchRemote pages through the remote follow-edge endpoint and returns
// the authoritative set of followed streamer ids for the stored identity.
func (s *Synchronizer) FetchRemote(ctx context.Context) (map[int64]struct{}, error) {
	account, err := s.store.Account(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := s.pager.CollectAll(ctx, fmt.Sprintf("users/follows?from_id=%d&first=100", account.ID))
	if err != nil {
		return nil, fmt.Errorf("fetch follows: %w", err)
	}

	remote := make(map[int64]struct{}, len(raw))
	for _, msg := range raw {
		var edge followEdge
		if err := json.Unmarshal(msg, &edge); err != nil {
			return nil, fmt.Errorf("decode follow edge: %w", err)
		}
		id, err := strconv.ParseInt(edge.ToID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("non-numeric follow target %q: %w", edge.ToID, err)
		}
		remote[id] = struct{}{}
	}
	return remote, nil
}

// Bootstrap builds the initial follow cache: the remote set is fetched,
// every referenced streamer is cached, and all of them are marked followed
// locally. No remote mutations are issued; the remote set is already the
// truth being copied. Callers run this against an empty entity store.
func (s *Synchronizer) Bootstrap(ctx context.Context) (map[int64]struct{}, error) {
	remote, err := s.FetchRemote(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(remote))
	for id := range remote {
		ids = append(ids, id)
	}
	if err := s.catalog.EnsureCached(ctx, ids, catalog.KindStreamer); err != nil {
		return nil, err
	}
	if err := s.store.MarkAllFollowed(ctx); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int("remote_follows", len(remote)).
		Msg("Bootstrapped follow cache")
	return remote, nil
}

// Reconcile fetches the remote follow set, caches every referenced
// streamer, toggles any cached profile whose followed flag disagrees with
// remote membership, and returns the remote set. The diff is symmetric: a
// local follow missing remotely is unfollowed, not just the additive case.
func (s *Synchronizer) Reconcile(ctx context.Context) (map[int64]struct{}, error) {
	remote, err := s.FetchRemote(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(remote))
	for id := range remote {
		ids = append(ids, id)
	}
	if err := s.catalog.EnsureCached(ctx, ids, catalog.KindStreamer); err != nil {
		return nil, err
	}

	streamers, err := s.store.Streamers(ctx)
	if err != nil {
		return nil, err
	}

	// Snapshot the toggle set before any toggle begins. An entity in
	// neither the remote set nor the local flags is left alone.
	var toggles []*store.Streamer
	for _, st := range streamers {
		_, inRemote := remote[st.ID]
		if inRemote != st.Followed {
			toggles = append(toggles, st)
		}
	}
	if len(toggles) == 0 {
		return remote, nil
	}

	account, err := s.store.Account(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int("toggles", len(toggles)).
		Int("remote_follows", len(remote)).
		Msg("Converging follow state")

	var wg sync.WaitGroup
	for _, st := range toggles {
		wg.Add(1)
		go func(st *store.Streamer) {
			defer wg.Done()
			if err := s.toggle(ctx, account.ID, st); err != nil {
				// One failed toggle does not block its siblings; the
				// next reconciliation pass picks the entity up again.
				followToggleErrors.Inc()
				s.logger.Warn().
					Err(err).
					Int64("streamer_id", st.ID).
					Msg("Follow toggle failed")
			}
		}(st)
	}
	wg.Wait()

	return remote, nil
}

// Toggle flips the follow state of one streamer both locally and remotely.
func (s *Synchronizer) Toggle(ctx context.Context, st *store.Streamer) error {
	account, err := s.store.Account(ctx)
	if err != nil {
		return err
	}
	return s.toggle(ctx, account.ID, st)
}

// toggle applies the local flag flip optimistically, then sends the remote
// mutation. Favors a responsive local view over write-then-flip ordering;
// a remote failure is surfaced and repaired on the next reconciliation.
func (s *Synchronizer) toggle(ctx context.Context, fromID int64, st *store.Streamer) error {
	if err := s.store.SetFollowed(ctx, st.ID, !st.Followed); err != nil {
		return err
	}

	params := fmt.Sprintf("users/follows?from_id=%d&to_id=%d", fromID, st.ID)
	method := http.MethodPost
	direction := "follow"
	if st.Followed {
		method = http.MethodDelete
		direction = "unfollow"
	}

	s.logger.Info().
		Str("direction", direction).
		Str("streamer", st.DisplayName).
		Msg("Toggling follow")
	followToggles.WithLabelValues(direction).Inc()

	return s.client.Send(ctx, method, params)
}
