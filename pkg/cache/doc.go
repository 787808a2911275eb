// Package cache provides response caching for the Mattermost client with a
// Redis backend.
//
// The cache manager implements conditional-request caching with the
// following features:
//
// - ETag support for conditional requests (If-None-Match)
// - Last-Modified support (If-Modified-Since)
// - Revalidation-only serving: a stored body is returned to a caller only
//   after the upstream answered 304 Not Modified for it
// - Storage TTL management so stale entries age out of Redis
// - Prometheus metrics for observability
// - Deterministic cache key generation
//
// The upstream API sends no Expires header, so entries carry no freshness
// of their own. Every GET still travels to the server; the cache saves
// bandwidth and decode work, not round trips.
//
// # Basic Usage
//
//	// Create Redis client
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	// Create cache manager
//	manager := cache.NewManager(redisClient, cache.DefaultTTL)
//
//	// Create cache key
//	key := cache.CacheKey{
//		Endpoint: "/channels/8a7b6c/posts",
//		QueryParams: url.Values{"page": []string{"0"}},
//		UserScope: "9f8e7d",
//	}
//
//	// Get from cache
//	entry, err := manager.Get(ctx, key)
//	if err == cache.ErrCacheMiss {
//		// Cache miss - plain request, store the entry afterwards
//	}
//
// # HTTP Response Caching
//
//	// Convert HTTP response to cache entry
//	entry, err := cache.ResponseToEntry(resp)
//	if err != nil {
//		return err
//	}
//
//	// Store in cache
//	if err := manager.Set(ctx, key, entry); err != nil {
//		return err
//	}
//
// # Conditional Requests
//
//	// Check if we should make a conditional request
//	if cache.ShouldMakeConditionalRequest(entry) {
//		cache.AddConditionalHeaders(req, entry)
//		// Make request - the server returns 304 if nothing changed,
//		// and the stored body is served via cache.EntryToResponse.
//	}
//
// # Metrics
//
// The cache manager exports Prometheus metrics:
//
//   - mattermost_cache_hits_total{layer="redis"} - Cache hits
//   - mattermost_cache_misses_total - Cache misses
//   - mattermost_cache_size_bytes{layer="redis"} - Cache size
//   - mattermost_conditional_requests_total - Requests sent with If-None-Match
//   - mattermost_304_responses_total - Conditional request successes
//   - mattermost_cache_errors_total{operation} - Cache operation errors
package cache
