package mattermost

import (
	"time"

	"github.com/mmbridge/mattermost-mcp/pkg/pagination"
)

// Reduced projections served to tools. Presentation only: timestamps are
// rendered RFC 3339 UTC, internal-only fields are dropped.

type ChannelSummary struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	DisplayName   string `json:"display_name,omitempty"`
	Type          string `json:"type"`
	Purpose       string `json:"purpose,omitempty"`
	Created       string `json:"created,omitempty"`
	LastPostAt    string `json:"last_post_at,omitempty"`
	TotalMsgCount int64  `json:"total_msg_count,omitempty"`
	Archived      bool   `json:"archived,omitempty"`
}

type UserSummary struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	Nickname  string `json:"nickname,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Position  string `json:"position,omitempty"`
	IsBot     bool   `json:"is_bot,omitempty"`
	Created   string `json:"created,omitempty"`
	Deleted   bool   `json:"deleted,omitempty"`
}

type PostView struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id,omitempty"`
	UserID    string `json:"user_id"`
	RootID    string `json:"root_id,omitempty"`
	Message   string `json:"message"`
	Type      string `json:"type,omitempty"`
	Created   string `json:"created"`
	Deleted   bool   `json:"deleted,omitempty"`
}

type ReactionView struct {
	UserID    string `json:"user_id"`
	EmojiName string `json:"emoji_name"`
	Created   string `json:"created,omitempty"`
}

// FilterEcho restates the caller's filters in the output. The since bound
// is echoed in the same normalized time format as the entity timestamps.
type FilterEcho struct {
	Since  string `json:"since,omitempty"`
	Before string `json:"before,omitempty"`
	After  string `json:"after,omitempty"`
}

// PostPage is the rendered form of one post listing: views joined with
// their bodies in order, counts, and for a single fetched page the
// next/prev signals from its cursors. Aggregates consume the cursors
// internally and report none.
type PostPage struct {
	Posts   []PostView  `json:"posts"`
	Count   int         `json:"count"`
	HasNext *bool       `json:"has_next,omitempty"`
	HasPrev *bool       `json:"has_prev,omitempty"`
	Filters *FilterEcho `json:"filters,omitempty"`
}

// FormatTime renders an epoch-millisecond timestamp as RFC 3339 UTC. Zero
// and negative values render empty.
func FormatTime(ms int64) string {
	if ms <= 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

func FormatChannel(ch Channel) ChannelSummary {
	return ChannelSummary{
		ID:            ch.ID,
		Name:          ch.Name,
		DisplayName:   ch.DisplayName,
		Type:          ch.Type,
		Purpose:       ch.Purpose,
		Created:       FormatTime(ch.CreateAt),
		LastPostAt:    FormatTime(ch.LastPostAt),
		TotalMsgCount: ch.TotalMsgCount,
		Archived:      ch.DeleteAt > 0,
	}
}

// FormatChannels renders channels in slice order.
func FormatChannels(channels []Channel) []ChannelSummary {
	summaries := make([]ChannelSummary, len(channels))
	for i, ch := range channels {
		summaries[i] = FormatChannel(ch)
	}
	return summaries
}

// FormatChannelAggregate renders an aggregate in its merged order.
func FormatChannelAggregate(result pagination.Result[Channel]) []ChannelSummary {
	summaries := make([]ChannelSummary, 0, len(result.Order))
	for _, id := range result.Order {
		ch, ok := result.Items[id]
		if !ok {
			continue
		}
		summaries = append(summaries, FormatChannel(ch))
	}
	return summaries
}

func FormatUser(u User) UserSummary {
	return UserSummary{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Nickname:  u.Nickname,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Position:  u.Position,
		IsBot:     u.IsBot,
		Created:   FormatTime(u.CreateAt),
		Deleted:   u.DeleteAt > 0,
	}
}

// FormatUsers renders users in slice order.
func FormatUsers(users []User) []UserSummary {
	summaries := make([]UserSummary, len(users))
	for i, u := range users {
		summaries[i] = FormatUser(u)
	}
	return summaries
}

// FormatUserAggregate renders an aggregate in its merged order.
func FormatUserAggregate(result pagination.Result[User]) []UserSummary {
	summaries := make([]UserSummary, 0, len(result.Order))
	for _, id := range result.Order {
		u, ok := result.Items[id]
		if !ok {
			continue
		}
		summaries = append(summaries, FormatUser(u))
	}
	return summaries
}

func FormatPost(p Post) PostView {
	return PostView{
		ID:        p.ID,
		ChannelID: p.ChannelID,
		UserID:    p.UserID,
		RootID:    p.RootID,
		Message:   p.Message,
		Type:      p.Type,
		Created:   FormatTime(p.CreateAt),
		Deleted:   p.DeleteAt > 0,
	}
}

// FormatPosts renders posts in slice order.
func FormatPosts(posts []Post) []PostView {
	views := make([]PostView, len(posts))
	for i, p := range posts {
		views[i] = FormatPost(p)
	}
	return views
}

// FormatPostPage renders one fetched page: each ordered id joined with its
// body, next/prev derived from the page cursors.
func FormatPostPage(page pagination.Page[Post], filter PostFilter) PostPage {
	views := orderedPostViews(page.Order, page.Items)
	hasNext := page.Next != ""
	hasPrev := page.Prev != ""
	return PostPage{
		Posts:   views,
		Count:   len(views),
		HasNext: &hasNext,
		HasPrev: &hasPrev,
		Filters: filterEcho(filter),
	}
}

// FormatPostAggregate renders a merged aggregate in its fetch order,
// without next/prev.
func FormatPostAggregate(result pagination.Result[Post], filter PostFilter) PostPage {
	views := orderedPostViews(result.Order, result.Items)
	return PostPage{
		Posts:   views,
		Count:   len(views),
		Filters: filterEcho(filter),
	}
}

func orderedPostViews(order []string, items map[string]Post) []PostView {
	views := make([]PostView, 0, len(order))
	for _, id := range order {
		post, ok := items[id]
		if !ok {
			continue
		}
		views = append(views, FormatPost(post))
	}
	return views
}

func filterEcho(filter PostFilter) *FilterEcho {
	if filter.Since <= 0 && filter.Before == "" && filter.After == "" {
		return nil
	}
	return &FilterEcho{
		Since:  FormatTime(filter.Since),
		Before: filter.Before,
		After:  filter.After,
	}
}

func FormatReaction(r Reaction) ReactionView {
	return ReactionView{
		UserID:    r.UserID,
		EmojiName: r.EmojiName,
		Created:   FormatTime(r.CreateAt),
	}
}

// FormatReactions renders reactions in slice order.
func FormatReactions(reactions []Reaction) []ReactionView {
	views := make([]ReactionView, len(reactions))
	for i, r := range reactions {
		views[i] = FormatReaction(r)
	}
	return views
}
