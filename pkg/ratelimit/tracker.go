package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit tracking.
var (
	rateLimitRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mattermost_ratelimit_remaining",
		Help: "Number of requests remaining in the current rate limit window",
	})

	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mattermost_ratelimit_blocks_total",
		Help: "Total number of requests blocked on an exhausted rate limit budget",
	})

	rateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mattermost_ratelimit_throttles_total",
		Help: "Total number of requests throttled on a low rate limit budget",
	})

	rateLimitResetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mattermost_ratelimit_resets_total",
		Help: "Total number of rate limit window resets detected",
	})
)

// throttleDelay is the pause inserted before requests while the remaining
// budget is below the warning threshold.
const throttleDelay = 1 * time.Second

// Tracker monitors the upstream rate limit budget and gates requests.
//
// With a Redis client the state is shared across processes. Without one
// (nil client) the tracker keeps single-process state in memory.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger

	mu            sync.Mutex
	mem           *RateLimitState
	lastRemaining int
}

// NewTracker creates a new rate limit tracker. A nil Redis client switches
// the tracker to in-memory state.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:         redisClient,
		logger:        logger,
		lastRemaining: -1,
	}
}

// defaultState assumes a healthy budget until real headers arrive.
func defaultState() *RateLimitState {
	return &RateLimitState{
		Limit:      100,
		Remaining:  100,
		ResetAt:    time.Now().Add(60 * time.Second),
		LastUpdate: time.Now(),
		IsHealthy:  true,
	}
}

// GetState retrieves the current rate limit state.
// Returns a default healthy state if no data has been recorded yet.
func (t *Tracker) GetState(ctx context.Context) (*RateLimitState, error) {
	if t.redis == nil {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.mem == nil {
			return defaultState(), nil
		}
		state := *t.mem
		return &state, nil
	}

	limit, err := t.redis.Get(ctx, RedisKeyLimit).Int()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get limit: %w", err)
	}

	remaining, err := t.redis.Get(ctx, RedisKeyRemaining).Int()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get remaining: %w", err)
	}

	resetTimestamp, err := t.redis.Get(ctx, RedisKeyResetTimestamp).Int64()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get reset timestamp: %w", err)
	}

	lastUpdateStr, err := t.redis.Get(ctx, RedisKeyLastUpdate).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get last update: %w", err)
	}

	// All four keys are written together; the last one missing means no
	// state has been recorded yet.
	if err == redis.Nil {
		t.logger.Debug().Msg("No rate limit state in Redis, returning default healthy state")
		return defaultState(), nil
	}

	var lastUpdate time.Time
	if lastUpdateStr != "" {
		if err := json.Unmarshal([]byte(lastUpdateStr), &lastUpdate); err != nil {
			return nil, fmt.Errorf("parse last update: %w", err)
		}
	}

	state := &RateLimitState{
		Limit:      limit,
		Remaining:  remaining,
		ResetAt:    time.Unix(resetTimestamp, 0),
		LastUpdate: lastUpdate,
	}
	state.UpdateHealth()

	return state, nil
}

// UpdateFromHeaders parses the rate limit headers and updates the shared
// state. Responses without rate limit headers are ignored.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	remainStr := headers.Get("X-Ratelimit-Remaining")
	if remainStr == "" {
		// Header not present; rate limiting is disabled on this server
		return nil
	}

	remaining, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse X-Ratelimit-Remaining header: %w", err)
	}

	resetStr := headers.Get("X-Ratelimit-Reset")
	if resetStr == "" {
		return fmt.Errorf("X-Ratelimit-Reset header missing")
	}

	resetSeconds, err := strconv.Atoi(resetStr)
	if err != nil {
		return fmt.Errorf("parse X-Ratelimit-Reset header: %w", err)
	}

	limit := 0
	if limitStr := headers.Get("X-Ratelimit-Limit"); limitStr != "" {
		if limit, err = strconv.Atoi(limitStr); err != nil {
			return fmt.Errorf("parse X-Ratelimit-Limit header: %w", err)
		}
	}

	now := time.Now()
	state := &RateLimitState{
		Limit:      limit,
		Remaining:  remaining,
		ResetAt:    now.Add(time.Duration(resetSeconds) * time.Second),
		LastUpdate: now,
	}
	state.UpdateHealth()

	t.mu.Lock()
	if t.lastRemaining >= 0 && remaining > t.lastRemaining {
		rateLimitResetsTotal.Inc()
	}
	t.lastRemaining = remaining
	if t.redis == nil {
		t.mem = state
	}
	t.mu.Unlock()

	if t.redis != nil {
		pipe := t.redis.Pipeline()
		pipe.Set(ctx, RedisKeyLimit, limit, 0)
		pipe.Set(ctx, RedisKeyRemaining, remaining, 0)
		pipe.Set(ctx, RedisKeyResetTimestamp, state.ResetAt.Unix(), 0)

		lastUpdateJSON, err := json.Marshal(state.LastUpdate)
		if err != nil {
			return fmt.Errorf("marshal last update: %w", err)
		}
		pipe.Set(ctx, RedisKeyLastUpdate, lastUpdateJSON, 0)

		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("store rate limit state in redis: %w", err)
		}
	}

	rateLimitRemaining.Set(float64(remaining))

	logEvent := t.logger.Info().
		Int("remaining", remaining).
		Time("reset_at", state.ResetAt).
		Bool("is_healthy", state.IsHealthy)

	if state.NeedsCriticalBlock() {
		t.logger.Error().
			Int("remaining", remaining).
			Time("reset_at", state.ResetAt).
			Msg("Rate limit budget exhausted - requests will be blocked")
	} else if state.NeedsThrottling() {
		t.logger.Warn().
			Int("remaining", remaining).
			Msg("Rate limit budget low - requests will be throttled")
	} else {
		logEvent.Msg("Rate limit state updated")
	}

	return nil
}

// ShouldAllowRequest checks if a request should be allowed based on current
// rate limit state. Returns false if the request should be blocked until
// the window resets. In the warning range the call sleeps briefly before
// returning true.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get rate limit state: %w", err)
	}

	// Critical: block all requests
	if state.NeedsCriticalBlock() {
		if state.TimeUntilReset() == 0 {
			// Window has reset since the last headers arrived
			return true, nil
		}

		t.logger.Error().
			Int("remaining", state.Remaining).
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("Rate limit budget exhausted - blocking request")

		rateLimitBlocksTotal.Inc()
		return false, nil
	}

	// Warning: slow down
	if state.NeedsThrottling() {
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Msg("Rate limit budget low - throttling request")

		rateLimitThrottlesTotal.Inc()

		timer := time.NewTimer(throttleDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
		}
	}

	return true, nil
}
