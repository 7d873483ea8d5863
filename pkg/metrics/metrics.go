// Package metrics provides the centralized Prometheus metrics registry for
// twitch-py. All metrics are defined in their respective packages (helix,
// catalog, follows) to maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by twitch-py.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/helix):
//   - helix_requests_total{endpoint, status} (Counter): Total requests by endpoint and HTTP status
//   - helix_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - helix_errors_total{class} (Counter): Errors by class (transport, decode)
//
// Retry Metrics (pkg/helix):
//   - helix_retries_total (Counter): Retry attempts
//   - helix_retry_backoff_seconds (Histogram): Backoff duration between retries
//   - helix_retry_exhausted_total (Counter): Requests that exhausted max retries
//
// Rate Limit Metrics (pkg/ratelimit):
//   - helix_ratelimit_points_remaining (Gauge): Points left in the current bucket
//   - helix_ratelimit_blocks_total (Counter): Requests delayed until the bucket refill
//   - helix_ratelimit_throttles_total (Counter): Requests briefly delayed near the floor
//
// Cache Metrics (internal/catalog):
//   - catalog_cache_hits_total{kind} (Counter): Ids already present at fill time
//   - catalog_cache_misses_total{kind} (Counter): Ids fetched from the remote service
//   - catalog_cache_fill_errors_total{kind} (Counter): Failed cache fills
//
// Follow Metrics (internal/follows):
//   - follow_toggles_total{direction} (Counter): Follow/unfollow toggles issued
//   - follow_toggle_errors_total (Counter): Toggle calls that failed remotely
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(catalog_cache_hits_total[5m])) /
//   (sum(rate(catalog_cache_hits_total[5m])) + sum(rate(catalog_cache_misses_total[5m])))
//
//   # Request Error Rate
//   rate(helix_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(helix_request_duration_seconds_bucket[5m]))
