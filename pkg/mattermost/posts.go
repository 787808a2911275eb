package mattermost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"github.com/mmbridge/mattermost-mcp/pkg/pagination"
)

// PostFilter narrows a post listing. Zero values are omitted from the
// request entirely. The bounds pass through to the upstream unchecked;
// their interaction follows its semantics.
type PostFilter struct {
	// Since is an inclusive epoch-millisecond lower bound.
	Since int64
	// Before is a post id; only posts older than it are returned.
	Before string
	// After is a post id; only posts newer than it are returned.
	After string
}

func (f PostFilter) apply(q url.Values) {
	if f.Since > 0 {
		q.Set("since", strconv.FormatInt(f.Since, 10))
	}
	if f.Before != "" {
		q.Set("before", f.Before)
	}
	if f.After != "" {
		q.Set("after", f.After)
	}
}

// ChannelPosts fetches one page of posts for a channel, filter bound in.
func (c *Client) ChannelPosts(ctx context.Context, channelID string, page, perPage int, filter PostFilter) (pagination.Page[Post], error) {
	if channelID == "" {
		return pagination.Page[Post]{}, errors.New("channel id is required")
	}
	q := pageQuery(page, perPage)
	filter.apply(q)
	raw, err := c.api.Get(ctx, "/channels/"+channelID+"/posts", q)
	if err != nil {
		return pagination.Page[Post]{}, err
	}
	return decodePostPage(raw)
}

// AllChannelPosts merges every post page for a channel into one aggregate,
// with the same filter bound into each page request. maxItems caps the
// result; nil means unbounded.
func (c *Client) AllChannelPosts(ctx context.Context, channelID string, filter PostFilter, maxItems *int) (pagination.Result[Post], error) {
	if channelID == "" {
		return pagination.Result[Post]{}, errors.New("channel id is required")
	}
	fetch := func(ctx context.Context, page, perPage int) (pagination.Page[Post], error) {
		return c.ChannelPosts(ctx, channelID, page, perPage, filter)
	}
	return pagination.Collect(ctx, fetch, pagination.Options{
		MaxItems: maxItems,
		Resource: "posts",
	})
}

// Thread fetches the thread containing a post, in the upstream's order.
func (c *Client) Thread(ctx context.Context, postID string) (pagination.Page[Post], error) {
	if postID == "" {
		return pagination.Page[Post]{}, errors.New("post id is required")
	}
	raw, err := c.api.Get(ctx, "/posts/"+postID+"/thread", nil)
	if err != nil {
		return pagination.Page[Post]{}, err
	}
	return decodePostPage(raw)
}

// ThreadPosts fetches a thread and returns every post in creation order.
// The upstream orders a thread page around the requested post, so the
// chronological view comes from the bodies, not the order list.
func (c *Client) ThreadPosts(ctx context.Context, postID string) ([]Post, error) {
	page, err := c.Thread(ctx, postID)
	if err != nil {
		return nil, err
	}
	posts := make([]Post, 0, len(page.Items))
	for _, post := range page.Items {
		posts = append(posts, post)
	}
	sort.Slice(posts, func(i, j int) bool {
		return posts[i].CreateAt < posts[j].CreateAt
	})
	return posts, nil
}

// Post fetches a single post by id.
func (c *Client) Post(ctx context.Context, postID string) (*Post, error) {
	if postID == "" {
		return nil, errors.New("post id is required")
	}
	raw, err := c.api.Get(ctx, "/posts/"+postID, nil)
	if err != nil {
		return nil, err
	}
	var post Post
	if err := json.Unmarshal(raw, &post); err != nil {
		return nil, fmt.Errorf("decode post: %w", err)
	}
	return &post, nil
}

// CreatePost creates a post from the draft and returns the stored post.
func (c *Client) CreatePost(ctx context.Context, draft PostDraft) (*Post, error) {
	if draft.ChannelID == "" {
		return nil, errors.New("channel id is required")
	}
	if draft.Message == "" {
		return nil, errors.New("message is required")
	}
	raw, err := c.api.Post(ctx, "/posts", draft)
	if err != nil {
		return nil, err
	}
	var post Post
	if err := json.Unmarshal(raw, &post); err != nil {
		return nil, fmt.Errorf("decode created post: %w", err)
	}
	return &post, nil
}

// SearchPosts runs a team-scoped post search and returns the matches as a
// page in the upstream's ranking order.
func (c *Client) SearchPosts(ctx context.Context, teamID, terms string, isOrSearch bool) (pagination.Page[Post], error) {
	if teamID == "" {
		return pagination.Page[Post]{}, errors.New("team id is required")
	}
	if terms == "" {
		return pagination.Page[Post]{}, errors.New("search terms are required")
	}
	payload := struct {
		Terms      string `json:"terms"`
		IsOrSearch bool   `json:"is_or_search"`
	}{Terms: terms, IsOrSearch: isOrSearch}

	raw, err := c.api.Post(ctx, "/teams/"+teamID+"/posts/search", payload)
	if err != nil {
		return pagination.Page[Post]{}, err
	}
	return decodePostPage(raw)
}

// decodePostPage decodes the keyed wire shape into a page. The body map is
// carried as-is, so posts included for context (thread roots) stay
// available to the merge even when the order does not list them.
func decodePostPage(raw json.RawMessage) (pagination.Page[Post], error) {
	var list PostList
	if err := json.Unmarshal(raw, &list); err != nil {
		return pagination.Page[Post]{}, fmt.Errorf("decode post list: %w", err)
	}
	return pagination.Page[Post]{
		Order: list.Order,
		Items: list.Posts,
		Next:  list.NextPostID,
		Prev:  list.PrevPostID,
	}, nil
}
