package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// CacheKey represents a unique identifier for a cached API response.
type CacheKey struct {
	// Endpoint is the API path below /api/v4 (e.g., "/channels/{id}/posts"
	// with the id already substituted)
	Endpoint string

	// QueryParams are the query parameters (e.g., {"page": "0", "per_page": "200"})
	QueryParams url.Values

	// UserScope isolates entries per authenticated user, since channel and
	// post visibility depends on who asks (empty for unscoped responses)
	UserScope string
}

// String generates a deterministic cache key string.
// Format: mm:endpoint:query1=val1:query2=val2:user=abc
//
// Example:
//
//	mm:channels/8a7b6c/posts:page=0:per_page=200:user=9f8e7d
func (k CacheKey) String() string {
	parts := []string{"mm"}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	// Query params sorted for determinism
	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.QueryParams.Get(key)))
		}
	}

	if k.UserScope != "" {
		parts = append(parts, fmt.Sprintf("user=%s", k.UserScope))
	}

	return strings.Join(parts, ":")
}
