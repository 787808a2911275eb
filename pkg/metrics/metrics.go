// Package metrics provides the centralized Prometheus metrics registry for
// the Mattermost client. All metrics are defined in their respective packages
// (client, cache, ratelimit, pagination) to maintain modularity and avoid
// circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the Mattermost client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - mattermost_ratelimit_remaining (Gauge): Requests remaining in the current window
//   - mattermost_ratelimit_blocks_total (Counter): Requests blocked on an exhausted budget
//   - mattermost_ratelimit_throttles_total (Counter): Requests delayed on a low budget
//   - mattermost_ratelimit_resets_total (Counter): Window resets detected
//
// Cache Metrics (pkg/cache):
//   - mattermost_cache_hits_total{layer="redis"} (Counter): Cache hits by layer
//   - mattermost_cache_misses_total (Counter): Cache misses
//   - mattermost_cache_size_bytes{layer="redis"} (Gauge): Current cache size in bytes
//   - mattermost_304_responses_total (Counter): 304 Not Modified responses
//   - mattermost_conditional_requests_total (Counter): Requests sent with If-None-Match
//   - mattermost_cache_errors_total{operation} (Counter): Cache operation errors
//
// Request Metrics (pkg/client):
//   - mattermost_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - mattermost_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - mattermost_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - mattermost_retries_total{error_class} (Counter): Retry attempts by error class
//   - mattermost_retry_backoff_seconds{error_class} (Histogram): Backoff durations by error class
//   - mattermost_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Pagination Metrics (pkg/pagination):
//   - mattermost_pages_fetched_total{resource} (Counter): Pages fetched by aggregation runs
//   - mattermost_aggregations_total{resource, outcome} (Counter): Aggregation runs by outcome
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(mattermost_cache_hits_total[5m])) /
//   (sum(rate(mattermost_cache_hits_total[5m])) + sum(rate(mattermost_cache_misses_total[5m])))
//
//   # Rate Limit Status
//   mattermost_ratelimit_remaining < 10
//
//   # Request Error Rate
//   rate(mattermost_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(mattermost_request_duration_seconds_bucket[5m]))
//
//   # 304 Response Rate
//   rate(mattermost_304_responses_total[5m]) / rate(mattermost_requests_total[5m])
