package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for rate limit tracking.
var (
	helixPointsRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "helix_ratelimit_points_remaining",
		Help: "Points remaining in the current Helix rate-limit bucket",
	})

	helixRateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "helix_ratelimit_blocks_total",
		Help: "Requests delayed until the bucket refill",
	})

	helixRateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "helix_ratelimit_throttles_total",
		Help: "Requests briefly delayed near the bucket floor",
	})
)

// throttleDelay is applied between requests while the bucket runs low.
const throttleDelay = 250 * time.Millisecond

// maxStateAge after which an unrefreshed state stops gating requests.
const maxStateAge = 2 * time.Minute

// Tracker observes Helix rate-limit headers and gates requests. One
// tracker is shared by all requests of a client; all methods are safe for
// concurrent use.
type Tracker struct {
	mu     sync.Mutex
	state  State
	logger zerolog.Logger
}

// NewTracker creates a tracker that assumes a healthy bucket until the
// first response headers arrive.
func NewTracker() *Tracker {
	return &Tracker{
		state: State{
			Limit:      800,
			Remaining:  800,
			LastUpdate: time.Now(),
		},
		logger: log.With().Str("component", "ratelimit").Logger(),
	}
}

// State returns a copy of the current bucket state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// UpdateFromHeaders records the bucket headers of one response. Responses
// without rate-limit headers leave the state untouched.
func (t *Tracker) UpdateFromHeaders(headers http.Header) {
	remainStr := headers.Get("Ratelimit-Remaining")
	if remainStr == "" {
		return
	}
	remaining, err := strconv.Atoi(remainStr)
	if err != nil {
		t.logger.Warn().Str("value", remainStr).Msg("Unparseable Ratelimit-Remaining header")
		return
	}

	limit, _ := strconv.Atoi(headers.Get("Ratelimit-Limit"))

	var resetAt time.Time
	if resetStr := headers.Get("Ratelimit-Reset"); resetStr != "" {
		if unix, err := strconv.ParseInt(resetStr, 10, 64); err == nil {
			resetAt = time.Unix(unix, 0)
		}
	}

	t.mu.Lock()
	t.state = State{
		Limit:      limit,
		Remaining:  remaining,
		ResetAt:    resetAt,
		LastUpdate: time.Now(),
	}
	t.mu.Unlock()

	helixPointsRemaining.Set(float64(remaining))

	if remaining < ThresholdWarning {
		t.logger.Warn().
			Int("remaining", remaining).
			Int("limit", limit).
			Msg("Helix rate-limit bucket running low")
	}
}

// Wait delays the caller according to the current bucket state: not at all
// when healthy, briefly when low, and until the bucket refill when nearly
// empty. Returns the context error if the context ends during the wait.
func (t *Tracker) Wait(ctx context.Context) error {
	state := t.State()
	if state.IsStale(maxStateAge) {
		return nil
	}

	var delay time.Duration
	switch {
	case state.NeedsBlock():
		delay = state.TimeUntilReset()
		helixRateLimitBlocksTotal.Inc()
		t.logger.Warn().
			Dur("delay", delay).
			Int("remaining", state.Remaining).
			Msg("Blocking request until rate-limit bucket refill")
	case state.NeedsThrottling():
		delay = throttleDelay
		helixRateLimitThrottlesTotal.Inc()
	default:
		return nil
	}

	if delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}
