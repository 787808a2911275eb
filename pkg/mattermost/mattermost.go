// Package mattermost is a typed client for the Mattermost REST API v4:
// channels, users, posts, and reactions, with single-page fetchers and
// aggregate variants that merge every page of a listing.
//
// Listing endpoints answer in two shapes (a bare array or an enveloped
// object with a total count); the normalizer folds both into one canonical
// envelope before anything else touches the payload. Aggregate methods walk
// pages through pkg/pagination and return merged results; formatters project
// the wire entities into the reduced shapes served to tools.
package mattermost

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/mmbridge/mattermost-mcp/pkg/pagination"
)

// API is the transport the client speaks through. *client.Client satisfies
// it; tests may substitute their own.
type API interface {
	Get(ctx context.Context, path string, query url.Values) (json.RawMessage, error)
	Post(ctx context.Context, path string, payload any) (json.RawMessage, error)
}

// Client exposes one method per upstream operation.
type Client struct {
	api API
}

// New returns a client speaking through the given transport.
func New(api API) *Client {
	return &Client{api: api}
}

// pageQuery builds the pagination parameters every listing request carries.
// The upstream silently clamps per_page above the maximum, so the clamp
// happens here and keeps the undersized-page arithmetic honest.
func pageQuery(page, perPage int) url.Values {
	if perPage <= 0 {
		perPage = pagination.DefaultPerPage
	}
	if perPage > pagination.MaxPerPage {
		perPage = pagination.MaxPerPage
	}
	q := make(url.Values)
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	return q
}
