package helix

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for retry operations.
var (
	helixRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "helix_retries_total",
		Help: "Total number of retry attempts",
	})

	helixRetryBackoffSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "helix_retry_backoff_seconds",
		Help:    "Backoff duration between retries",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30},
	})

	helixRetryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "helix_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted",
	})
)

const (
	initialBackoff    = 1 * time.Second
	maxBackoff        = 30 * time.Second
	backoffMultiplier = 2.0
)

// retryWithBackoff executes fn with exponential backoff retry logic.
// It respects context cancellation and adds jitter to prevent thundering herd.
// Only transient failures are retried; client errors and decode failures
// return immediately.
func retryWithBackoff(ctx context.Context, maxAttempts int, fn func() error) error {
	var lastErr error
	backoff := initialBackoff

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				log.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		lastErr = err

		if !shouldRetry(err) {
			return lastErr
		}

		if attempt >= maxAttempts {
			break
		}

		helixRetriesTotal.Inc()

		// Add jitter (±20% randomness).
		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		helixRetryBackoffSeconds.Observe(jitter.Seconds())

		log.Debug().
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("Retrying request after backoff")

		select {
		case <-ctx.Done():
			log.Warn().
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-time.After(jitter):
		}

		backoff = time.Duration(float64(backoff) * backoffMultiplier)
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}

	helixRetryExhaustedTotal.Inc()
	log.Warn().
		Int("max_attempts", maxAttempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, maxAttempts, lastErr)
}
