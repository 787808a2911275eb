// Package ratelimit implements Mattermost rate limit tracking and request
// gating. It monitors the X-Ratelimit-Limit, X-Ratelimit-Remaining and
// X-Ratelimit-Reset headers to keep the client inside the server's request
// budget instead of running into 429 responses.
package ratelimit

import (
	"time"
)

// Redis keys for rate limit state storage.
const (
	RedisKeyLimit          = "mm:rate_limit:limit"
	RedisKeyRemaining      = "mm:rate_limit:remaining"
	RedisKeyResetTimestamp = "mm:rate_limit:reset_timestamp"
	RedisKeyLastUpdate     = "mm:rate_limit:last_update"
)

// Thresholds for rate limit decisions.
const (
	// RemainingThresholdCritical blocks all requests when the remaining
	// budget falls below this value. Waiting out the window is cheaper
	// than collecting 429s.
	RemainingThresholdCritical = 2

	// RemainingThresholdWarning applies throttling when the remaining
	// budget falls below this value.
	RemainingThresholdWarning = 10

	// RemainingThresholdHealthy indicates normal operation.
	// At or above this value no restrictions apply.
	RemainingThresholdHealthy = 30
)

// RateLimitState represents the current upstream rate limit state.
// This state is shared across all client instances via Redis.
type RateLimitState struct {
	// Limit is the total number of requests allowed per window.
	// Extracted from the X-Ratelimit-Limit header.
	Limit int `json:"limit"`

	// Remaining is the number of requests left in the current window.
	// Extracted from the X-Ratelimit-Remaining header.
	Remaining int `json:"remaining"`

	// ResetAt is the timestamp when the window resets.
	// Calculated from the X-Ratelimit-Reset header (seconds until reset).
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is the timestamp when this state was last updated.
	// Used to detect stale state.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy indicates whether the budget is in a healthy state.
	// True when Remaining >= RemainingThresholdHealthy.
	IsHealthy bool `json:"is_healthy"`
}

// IsStale returns true if the state data is older than the given duration.
func (s *RateLimitState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsCriticalBlock returns true if requests should be blocked until the
// window resets.
func (s *RateLimitState) NeedsCriticalBlock() bool {
	return s.Remaining < RemainingThresholdCritical
}

// NeedsThrottling returns true if requests should be slowed down.
func (s *RateLimitState) NeedsThrottling() bool {
	return s.Remaining < RemainingThresholdWarning && !s.NeedsCriticalBlock()
}

// TimeUntilReset returns the duration until the window resets.
// Returns 0 if the reset time has already passed.
func (s *RateLimitState) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}

// UpdateHealth updates the IsHealthy field based on current Remaining.
func (s *RateLimitState) UpdateHealth() {
	s.IsHealthy = s.Remaining >= RemainingThresholdHealthy
}
