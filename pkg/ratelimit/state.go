// Package ratelimit tracks the Helix request-bucket headers so callers can
// slow down before the API starts rejecting with 429s.
package ratelimit

import (
	"time"
)

// Thresholds for rate limit decisions, in remaining bucket points.
const (
	// ThresholdCritical blocks requests until the bucket refills.
	ThresholdCritical = 5

	// ThresholdWarning logs and applies a short delay between requests.
	ThresholdWarning = 60
)

// State is the most recently observed Helix rate-limit bucket.
type State struct {
	// Limit is the bucket capacity from the Ratelimit-Limit header.
	Limit int

	// Remaining is the points left from the Ratelimit-Remaining header.
	Remaining int

	// ResetAt is when the bucket refills, from the Ratelimit-Reset header
	// (unix timestamp).
	ResetAt time.Time

	// LastUpdate is when this state was observed.
	LastUpdate time.Time
}

// IsStale reports whether the state is older than maxAge. A stale state is
// assumed healthy; the next response refreshes it.
func (s *State) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsBlock reports whether requests should wait for the bucket refill.
func (s *State) NeedsBlock() bool {
	return s.Remaining <= ThresholdCritical
}

// NeedsThrottling reports whether requests should slow down.
func (s *State) NeedsThrottling() bool {
	return s.Remaining < ThresholdWarning && !s.NeedsBlock()
}

// TimeUntilReset returns the duration until the bucket refills, or 0 when
// the reset time has already passed.
func (s *State) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}
