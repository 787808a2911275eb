// Package client provides an HTTP client for the Mattermost REST API with
// ETag-based response caching, rate limit tracking, automatic retries, and
// Prometheus metrics.
//
// Every request runs through the same pipeline: client-side pacing, the
// header-driven rate limit gate, conditional cache lookup, authenticated
// execution with per-class retry backoff, rate limit state update from
// response headers, and cache revalidation on 304 responses.
package client

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/mmbridge/mattermost-mcp/pkg/cache"
	"github.com/mmbridge/mattermost-mcp/pkg/ratelimit"
)

// Prometheus metrics for client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mattermost_requests_total",
		Help: "Total API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mattermost_request_duration_seconds",
		Help:    "API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mattermost_errors_total",
		Help: "Total API errors by class",
	}, []string{"class"})
)

// ErrorClass represents a classification of HTTP errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 rate limit errors.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// Client is a Mattermost REST API client.
type Client struct {
	httpClient  *http.Client
	redis       *redis.Client
	rateLimiter *ratelimit.Tracker
	cache       *cache.Manager
	limiter     *rate.Limiter
	config      Config
	logger      zerolog.Logger
	apiURL      string
	scope       string
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the server root URL, e.g. "https://chat.example.com".
	// The /api/v4 prefix is appended automatically.
	BaseURL string

	// Token is the personal access token or bot token sent as Bearer auth.
	Token string

	// User-Agent header sent on every request
	UserAgent string

	// Redis client for response caching and shared rate limit state.
	// Optional: when nil, caching is disabled and rate limit state is
	// tracked in memory.
	Redis *redis.Client

	// HTTP
	HTTPTimeout time.Duration // Per-request timeout

	// Rate Limiting
	RateLimit int // Client-side pacing in requests per second (0 disables)

	// Caching
	CacheTTL time.Duration // How long revalidation entries stay in Redis

	// Retry
	MaxRetries     int
	InitialBackoff time.Duration
}

// DefaultConfig returns a safe default configuration for the given server
// and token.
func DefaultConfig(baseURL, token string) Config {
	return Config{
		BaseURL:        baseURL,
		Token:          token,
		UserAgent:      "mattermost-mcp/1.0",
		HTTPTimeout:    30 * time.Second,
		RateLimit:      10,
		CacheTTL:       cache.DefaultTTL,
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
	}
}

// New creates a new Mattermost client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", cfg.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL scheme must be http or https (got %q)", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base URL %q has no host", cfg.BaseURL)
	}

	if cfg.Token == "" {
		return nil, fmt.Errorf("token is required")
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.MaxRetries < 1 {
		return nil, fmt.Errorf("max_retries must be >= 1 (got %d)", cfg.MaxRetries)
	}

	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 1 * time.Second
	}

	// Initialize logger
	logger := log.With().Str("component", "client").Logger()

	// Create rate limit tracker (in-memory when Redis is absent)
	rateLimiter := ratelimit.NewTracker(cfg.Redis, logger)

	// Create cache manager when Redis is available
	var cacheManager *cache.Manager
	if cfg.Redis != nil {
		cacheManager = cache.NewManager(cfg.Redis, cfg.CacheTTL)
	}

	// Client-side pacing
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		redis:       cfg.Redis,
		rateLimiter: rateLimiter,
		cache:       cacheManager,
		limiter:     limiter,
		config:      cfg,
		logger:      logger,
		apiURL:      strings.TrimRight(u.String(), "/") + "/api/v4",
		scope:       tokenScope(cfg.Token),
	}, nil
}

// tokenScope derives a short cache scoping fingerprint from the auth token.
// Cache entries are scoped per credential because channel and user
// visibility depends on the caller.
func tokenScope(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:4])
}

// Do performs an HTTP request with rate limiting, caching, and error handling.
// This is the core request method that orchestrates all client features.
// Server, rate limit, and network errors are retried with backoff; 4xx
// responses are returned to the caller with the status intact.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := req.URL.Path

	// Start request timing
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	// Step 1: Client-side pacing
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	// Step 2: Check the header-driven rate limit budget
	allowed, err := c.rateLimiter.ShouldAllowRequest(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("Rate limit check failed")
		return nil, fmt.Errorf("rate limit check: %w", err)
	}
	if !allowed {
		c.logger.Warn().
			Str("endpoint", endpoint).
			Msg("Request blocked by rate limiter")
		requestsTotal.WithLabelValues(endpoint, "rate_limited").Inc()
		return nil, ErrRateLimited
	}

	// Step 3: Check cache (GET only)
	var cachedEntry *cache.CacheEntry
	var cacheKey cache.CacheKey
	if req.Method == http.MethodGet && c.cache != nil {
		cacheKey = cache.CacheKey{
			Endpoint:    strings.TrimPrefix(endpoint, "/api/v4"),
			QueryParams: req.URL.Query(),
			UserScope:   c.scope,
		}

		entry, cacheErr := c.cache.Get(ctx, cacheKey)
		if cacheErr == nil {
			cachedEntry = entry
		} else if !errors.Is(cacheErr, cache.ErrCacheMiss) {
			c.logger.Warn().Err(cacheErr).Str("endpoint", endpoint).Msg("Cache get error")
		}
	}

	// Step 4: Make conditional request if cache hit
	if cachedEntry != nil && cache.ShouldMakeConditionalRequest(cachedEntry) {
		cache.AddConditionalHeaders(req, cachedEntry)
		cache.ConditionalRequests.Inc()
		c.logger.Debug().
			Str("endpoint", endpoint).
			Str("etag", cachedEntry.ETag).
			Msg("Making conditional request")
	}

	// Step 5: Set standard headers
	req.Header.Set("Authorization", "Bearer "+c.config.Token)
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	if req.Header.Get("X-Request-ID") == "" {
		req.Header.Set("X-Request-ID", uuid.NewString())
	}

	// Step 6: Execute HTTP request with retry logic
	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Msg("Executing request")

	retryCfg := DefaultRetryConfig()
	retryCfg.MaxAttempts = c.config.MaxRetries
	retryCfg.InitialBackoff = c.config.InitialBackoff

	var resp *http.Response
	retryErr := retryWithBackoff(ctx, retryCfg, func() error {
		// Rewind the body for requests that carry one
		if req.GetBody != nil {
			body, bodyErr := req.GetBody()
			if bodyErr != nil {
				return &APIError{
					ErrorClass: ErrorClassClient,
					Message:    "rewind request body",
					Err:        bodyErr,
				}
			}
			req.Body = body
		}

		var reqErr error
		resp, reqErr = c.httpClient.Do(req)

		// Handle network errors
		if reqErr != nil {
			c.logger.Error().Err(reqErr).Str("endpoint", endpoint).Msg("HTTP request failed")
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			return &APIError{
				ErrorClass: ErrorClassNetwork,
				Message:    "request failed",
				Err:        reqErr,
			}
		}

		// Update rate limit state from response headers
		if updateErr := c.rateLimiter.UpdateFromHeaders(ctx, resp.Header); updateErr != nil {
			c.logger.Debug().Err(updateErr).Msg("Failed to update rate limit from headers")
		}

		// Handle 304 Not Modified (not an error, return success)
		if resp.StatusCode == http.StatusNotModified {
			return nil
		}

		// Handle HTTP errors
		if resp.StatusCode >= 400 {
			errClass := classifyStatus(resp.StatusCode)
			errorsTotal.WithLabelValues(string(errClass)).Inc()
			requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

			c.logger.Warn().
				Str("endpoint", endpoint).
				Int("status_code", resp.StatusCode).
				Str("error_class", string(errClass)).
				Msg("Request error")

			// Check if we should retry this error
			if shouldRetry(errClass) {
				apiErr := newAPIError(resp, errClass)
				resp.Body.Close() // Close the body before retrying
				resp = nil
				return apiErr
			}

			// Don't retry client errors - return success (let caller handle status)
			return nil
		}

		// Success
		requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
		return nil
	}, classifyAttemptError)

	// Handle retry exhaustion
	if retryErr != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return nil, retryErr
	}

	// Step 7: Handle 304 Not Modified by serving the cached body
	if resp.StatusCode == http.StatusNotModified && cachedEntry != nil {
		c.logger.Debug().
			Str("endpoint", endpoint).
			Str("etag", cachedEntry.ETag).
			Msg("304 Not Modified - serving cached body")
		requestsTotal.WithLabelValues(endpoint, "304").Inc()
		cache.NotModified.Inc()

		// The entry is still current; restart its retention window
		if touchErr := c.cache.Touch(ctx, cacheKey); touchErr != nil && !errors.Is(touchErr, cache.ErrCacheMiss) {
			c.logger.Warn().Err(touchErr).Msg("Failed to refresh cache entry TTL")
		}

		resp.Body.Close()
		return cache.EntryToResponse(cachedEntry, req), nil
	}

	// Step 8: Update cache on success (GET only)
	if req.Method == http.MethodGet && c.cache != nil && resp.StatusCode == http.StatusOK {
		entry, entryErr := cache.ResponseToEntry(resp)
		if entryErr != nil {
			c.logger.Warn().Err(entryErr).Msg("Failed to create cache entry")
		} else if cache.ShouldMakeConditionalRequest(entry) {
			// Entries without a validator cannot be revalidated later
			if setErr := c.cache.Set(ctx, cacheKey, entry); setErr != nil {
				c.logger.Warn().Err(setErr).Msg("Failed to cache response")
			} else {
				c.logger.Debug().
					Str("endpoint", endpoint).
					Str("etag", entry.ETag).
					Msg("Cached response for revalidation")
			}
		}
	}

	return resp, nil
}

// classifyStatus maps an HTTP status code to an error class. Success codes
// map to the empty class.
func classifyStatus(statusCode int) ErrorClass {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case statusCode >= 500:
		return ErrorClassServer
	case statusCode >= 400:
		return ErrorClassClient
	default:
		return ""
	}
}

// classifyAttemptError maps a request attempt error to its error class for
// the retry loop.
func classifyAttemptError(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorClass
	}
	return ErrorClassNetwork
}

// newRequest builds a request against the API base URL.
func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := c.apiURL + "/" + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("create request for %s: %w", path, err)
	}
	return req, nil
}

// Get performs a GET request against an API path and returns the raw
// response body. Non-success statuses are returned as *APIError with the
// body attached.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(resp, classifyStatus(resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return json.RawMessage(body), nil
}

// GetJSON performs a GET request and decodes the response into v.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, v any) error {
	body, err := c.Get(ctx, path, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}
	return nil
}

// Post sends a JSON payload to an API path and returns the raw response
// body. Non-success statuses are returned as *APIError with the body
// attached.
func (c *Client) Post(ctx context.Context, path string, payload any) (json.RawMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, nil, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(resp, classifyStatus(resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return json.RawMessage(body), nil
}

// PostJSON sends a JSON payload and decodes the response into v.
func (c *Client) PostJSON(ctx context.Context, path string, payload, v any) error {
	body, err := c.Post(ctx, path, payload)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}
	return nil
}

// Close closes the client and releases resources.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Cache returns the cache manager, or nil when caching is disabled.
func (c *Client) Cache() *cache.Manager {
	return c.cache
}

// RateLimiter returns the rate limit tracker.
func (c *Client) RateLimiter() *ratelimit.Tracker {
	return c.rateLimiter
}
