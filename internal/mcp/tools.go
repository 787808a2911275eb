package mcp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpsrv "github.com/mark3labs/mcp-go/server"

	"github.com/mmbridge/mattermost-mcp/pkg/mattermost"
	"github.com/mmbridge/mattermost-mcp/pkg/pagination"
)

// listArgs carries the pagination arguments shared by the listing tools.
type listArgs struct {
	page    int
	perPage int
	all     bool
	limit   *int
}

// parseListArgs extracts page/per_page/all/limit. per_page is clamped to
// [1, 200] so the collector's undersized-page arithmetic stays aligned with
// what the upstream actually serves. A negative or non-numeric limit is
// rejected.
func parseListArgs(req mcplib.CallToolRequest) (listArgs, error) {
	la := listArgs{
		page:    max(intArg(req, "page", 0), 0),
		perPage: intArg(req, "per_page", pagination.DefaultPerPage),
		all:     boolArg(req, "all", false),
	}
	la.perPage = max(min(la.perPage, pagination.MaxPerPage), 1)

	if args := req.GetArguments(); args != nil {
		if _, ok := args["limit"]; ok {
			n := intArg(req, "limit", -1)
			if n < 0 {
				return listArgs{}, errors.New("limit must be a non-negative number")
			}
			la.limit = &n
		}
	}
	return la, nil
}

// parseSince converts a 'since' argument into epoch milliseconds. It accepts
// RFC 3339 strings and numeric epoch milliseconds (the MCP protocol
// serialises numbers as float64).
func parseSince(v any) (int64, error) {
	switch t := v.(type) {
	case float64:
		if t < 0 {
			return 0, fmt.Errorf("since must not be negative, got %v", t)
		}
		return int64(t), nil
	case string:
		if t == "" {
			return 0, nil
		}
		if ts, err := time.Parse(time.RFC3339, t); err == nil {
			return ts.UnixMilli(), nil
		}
		if ms, err := strconv.ParseInt(t, 10, 64); err == nil && ms >= 0 {
			return ms, nil
		}
		return 0, fmt.Errorf("cannot parse since %q, want RFC 3339 or epoch milliseconds", t)
	default:
		return 0, fmt.Errorf("since must be a string or a number, got %T", v)
	}
}

// parseFilter extracts the since/before/after post filters. since is parsed
// here so a malformed value never reaches the network.
func parseFilter(req mcplib.CallToolRequest) (mattermost.PostFilter, error) {
	var f mattermost.PostFilter
	args := req.GetArguments()
	if args == nil {
		return f, nil
	}
	if v, ok := args["since"]; ok {
		ms, err := parseSince(v)
		if err != nil {
			return mattermost.PostFilter{}, err
		}
		f.Since = ms
	}
	f.Before, _ = stringArg(req, "before")
	f.After, _ = stringArg(req, "after")
	return f, nil
}

func (s *Server) toolListChannels() mcpsrv.ServerTool {
	tool := mcplib.NewTool("list_channels",
		mcplib.WithDescription(`List channels on the Mattermost server.

Returns one page of channel summaries. Set 'all' to true to walk every page
and return the complete list, optionally capped with 'limit'.`),
		mcplib.WithNumber("page",
			mcplib.Description("0-based page number (default 0)"),
		),
		mcplib.WithNumber("per_page",
			mcplib.Description("Channels per page, 1-200 (default 200)"),
		),
		mcplib.WithBoolean("all",
			mcplib.Description("Aggregate every page instead of returning a single page"),
		),
		mcplib.WithNumber("limit",
			mcplib.Description("Maximum number of channels to return when 'all' is set"),
		),
		mcplib.WithReadOnlyHintAnnotation(true),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: s.handleListChannels}
}

func (s *Server) handleListChannels(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	la, err := parseListArgs(req)
	if err != nil {
		return resultErr(fmt.Errorf("list_channels: %w", err)), nil
	}

	var summaries []mattermost.ChannelSummary
	if la.all {
		agg, err := s.backend.AllChannels(ctx, la.limit)
		if err != nil {
			return toolError("list_channels", err)
		}
		summaries = mattermost.FormatChannelAggregate(agg)
	} else {
		list, err := s.backend.Channels(ctx, la.page, la.perPage)
		if err != nil {
			return toolError("list_channels", err)
		}
		summaries = mattermost.FormatChannels(list.Channels)
	}

	result, err := resultJSON(summaries)
	if err != nil {
		return resultErr(fmt.Errorf("list_channels: serialise: %w", err)), nil
	}
	return result, nil
}

func (s *Server) toolGetChannel() mcpsrv.ServerTool {
	tool := mcplib.NewTool("get_channel",
		mcplib.WithDescription("Get detailed information about a single channel by its ID."),
		mcplib.WithString("channel_id",
			mcplib.Description("The Mattermost channel ID (26-character identifier)"),
			mcplib.Required(),
		),
		mcplib.WithReadOnlyHintAnnotation(true),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: s.handleGetChannel}
}

func (s *Server) handleGetChannel(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	channelID, ok := stringArg(req, "channel_id")
	if !ok || channelID == "" {
		return resultErr(errors.New("get_channel: channel_id is required")), nil
	}

	ch, err := s.backend.Channel(ctx, channelID)
	if err != nil {
		return toolError("get_channel", err)
	}

	result, err := resultJSON(mattermost.FormatChannel(*ch))
	if err != nil {
		return resultErr(fmt.Errorf("get_channel: serialise: %w", err)), nil
	}
	return result, nil
}

func (s *Server) toolListUsers() mcpsrv.ServerTool {
	tool := mcplib.NewTool("list_users",
		mcplib.WithDescription(`List users on the Mattermost server.

Returns one page of user summaries. Set 'all' to true to walk every page and
return the complete list, optionally capped with 'limit'.`),
		mcplib.WithNumber("page",
			mcplib.Description("0-based page number (default 0)"),
		),
		mcplib.WithNumber("per_page",
			mcplib.Description("Users per page, 1-200 (default 200)"),
		),
		mcplib.WithBoolean("all",
			mcplib.Description("Aggregate every page instead of returning a single page"),
		),
		mcplib.WithNumber("limit",
			mcplib.Description("Maximum number of users to return when 'all' is set"),
		),
		mcplib.WithReadOnlyHintAnnotation(true),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: s.handleListUsers}
}

func (s *Server) handleListUsers(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	la, err := parseListArgs(req)
	if err != nil {
		return resultErr(fmt.Errorf("list_users: %w", err)), nil
	}

	var summaries []mattermost.UserSummary
	if la.all {
		agg, err := s.backend.AllUsers(ctx, la.limit)
		if err != nil {
			return toolError("list_users", err)
		}
		summaries = mattermost.FormatUserAggregate(agg)
	} else {
		list, err := s.backend.Users(ctx, la.page, la.perPage)
		if err != nil {
			return toolError("list_users", err)
		}
		summaries = mattermost.FormatUsers(list.Users)
	}

	result, err := resultJSON(summaries)
	if err != nil {
		return resultErr(fmt.Errorf("list_users: serialise: %w", err)), nil
	}
	return result, nil
}

func (s *Server) toolGetUser() mcpsrv.ServerTool {
	tool := mcplib.NewTool("get_user",
		mcplib.WithDescription("Get the profile of a single user by their ID."),
		mcplib.WithString("user_id",
			mcplib.Description("The Mattermost user ID (26-character identifier)"),
			mcplib.Required(),
		),
		mcplib.WithReadOnlyHintAnnotation(true),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: s.handleGetUser}
}

func (s *Server) handleGetUser(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	userID, ok := stringArg(req, "user_id")
	if !ok || userID == "" {
		return resultErr(errors.New("get_user: user_id is required")), nil
	}

	u, err := s.backend.User(ctx, userID)
	if err != nil {
		return toolError("get_user", err)
	}

	result, err := resultJSON(mattermost.FormatUser(*u))
	if err != nil {
		return resultErr(fmt.Errorf("get_user: serialise: %w", err)), nil
	}
	return result, nil
}

func (s *Server) toolGetMe() mcpsrv.ServerTool {
	tool := mcplib.NewTool("get_me",
		mcplib.WithDescription("Get the profile of the authenticated user, the owner of the configured access token."),
		mcplib.WithReadOnlyHintAnnotation(true),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: s.handleGetMe}
}

func (s *Server) handleGetMe(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	me, err := s.backend.Me(ctx)
	if err != nil {
		return toolError("get_me", err)
	}

	result, err := resultJSON(mattermost.FormatUser(*me))
	if err != nil {
		return resultErr(fmt.Errorf("get_me: serialise: %w", err)), nil
	}
	return result, nil
}

func (s *Server) toolGetChannelPosts() mcpsrv.ServerTool {
	tool := mcplib.NewTool("get_channel_posts",
		mcplib.WithDescription(`Retrieve posts from a channel, newest first.

Returns one page by default; set 'all' to true to walk every page, optionally
capped with 'limit'. The 'since', 'before' and 'after' filters restrict the
window: 'since' accepts an RFC 3339 timestamp or epoch milliseconds, 'before'
and 'after' take post IDs and page relative to them.`),
		mcplib.WithString("channel_id",
			mcplib.Description("The Mattermost channel ID to read posts from"),
			mcplib.Required(),
		),
		mcplib.WithNumber("page",
			mcplib.Description("0-based page number (default 0)"),
		),
		mcplib.WithNumber("per_page",
			mcplib.Description("Posts per page, 1-200 (default 200)"),
		),
		mcplib.WithBoolean("all",
			mcplib.Description("Aggregate every page instead of returning a single page"),
		),
		mcplib.WithNumber("limit",
			mcplib.Description("Maximum number of posts to return when 'all' is set"),
		),
		mcplib.WithString("since",
			mcplib.Description("Only posts at or after this time (RFC 3339 or epoch milliseconds)"),
		),
		mcplib.WithString("before",
			mcplib.Description("Only posts before this post ID"),
		),
		mcplib.WithString("after",
			mcplib.Description("Only posts after this post ID"),
		),
		mcplib.WithReadOnlyHintAnnotation(true),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: s.handleGetChannelPosts}
}

func (s *Server) handleGetChannelPosts(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	channelID, ok := stringArg(req, "channel_id")
	if !ok || channelID == "" {
		return resultErr(errors.New("get_channel_posts: channel_id is required")), nil
	}
	la, err := parseListArgs(req)
	if err != nil {
		return resultErr(fmt.Errorf("get_channel_posts: %w", err)), nil
	}
	filter, err := parseFilter(req)
	if err != nil {
		return resultErr(fmt.Errorf("get_channel_posts: %w", err)), nil
	}

	var view mattermost.PostPage
	if la.all {
		agg, err := s.backend.AllChannelPosts(ctx, channelID, filter, la.limit)
		if err != nil {
			return toolError("get_channel_posts", err)
		}
		view = mattermost.FormatPostAggregate(agg, filter)
	} else {
		page, err := s.backend.ChannelPosts(ctx, channelID, la.page, la.perPage, filter)
		if err != nil {
			return toolError("get_channel_posts", err)
		}
		view = mattermost.FormatPostPage(page, filter)
	}

	result, err := resultJSON(view)
	if err != nil {
		return resultErr(fmt.Errorf("get_channel_posts: serialise: %w", err)), nil
	}
	return result, nil
}

func (s *Server) toolGetThread() mcpsrv.ServerTool {
	tool := mcplib.NewTool("get_thread",
		mcplib.WithDescription("Retrieve a whole thread (root post and every reply) in chronological order. Accepts the ID of any post in the thread."),
		mcplib.WithString("post_id",
			mcplib.Description("The ID of any post in the thread"),
			mcplib.Required(),
		),
		mcplib.WithReadOnlyHintAnnotation(true),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: s.handleGetThread}
}

func (s *Server) handleGetThread(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	postID, ok := stringArg(req, "post_id")
	if !ok || postID == "" {
		return resultErr(errors.New("get_thread: post_id is required")), nil
	}

	posts, err := s.backend.ThreadPosts(ctx, postID)
	if err != nil {
		return toolError("get_thread", err)
	}

	result, err := resultJSON(mattermost.FormatPosts(posts))
	if err != nil {
		return resultErr(fmt.Errorf("get_thread: serialise: %w", err)), nil
	}
	return result, nil
}

func (s *Server) toolGetPostReactions() mcpsrv.ServerTool {
	tool := mcplib.NewTool("get_post_reactions",
		mcplib.WithDescription("List the emoji reactions on a post."),
		mcplib.WithString("post_id",
			mcplib.Description("The post whose reactions to list"),
			mcplib.Required(),
		),
		mcplib.WithReadOnlyHintAnnotation(true),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: s.handleGetPostReactions}
}

func (s *Server) handleGetPostReactions(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	postID, ok := stringArg(req, "post_id")
	if !ok || postID == "" {
		return resultErr(errors.New("get_post_reactions: post_id is required")), nil
	}

	reactions, err := s.backend.Reactions(ctx, postID)
	if err != nil {
		return toolError("get_post_reactions", err)
	}

	result, err := resultJSON(mattermost.FormatReactions(reactions))
	if err != nil {
		return resultErr(fmt.Errorf("get_post_reactions: serialise: %w", err)), nil
	}
	return result, nil
}

func (s *Server) toolSearchPosts() mcpsrv.ServerTool {
	tool := mcplib.NewTool("search_posts",
		mcplib.WithDescription(`Search posts within a team.

'terms' uses Mattermost search syntax (quoted phrases, from:, in:). With
'is_or_search' set, terms are ORed together instead of ANDed.`),
		mcplib.WithString("team_id",
			mcplib.Description("The team ID whose posts are searched"),
			mcplib.Required(),
		),
		mcplib.WithString("terms",
			mcplib.Description("Search terms in Mattermost search syntax"),
			mcplib.Required(),
		),
		mcplib.WithBoolean("is_or_search",
			mcplib.Description("OR the terms together instead of requiring all of them"),
		),
		mcplib.WithReadOnlyHintAnnotation(true),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: s.handleSearchPosts}
}

func (s *Server) handleSearchPosts(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	teamID, ok := stringArg(req, "team_id")
	if !ok || teamID == "" {
		return resultErr(errors.New("search_posts: team_id is required")), nil
	}
	terms, ok := stringArg(req, "terms")
	if !ok || terms == "" {
		return resultErr(errors.New("search_posts: terms is required")), nil
	}
	isOr := boolArg(req, "is_or_search", false)

	page, err := s.backend.SearchPosts(ctx, teamID, terms, isOr)
	if err != nil {
		return toolError("search_posts", err)
	}

	result, err := resultJSON(mattermost.FormatPostPage(page, mattermost.PostFilter{}))
	if err != nil {
		return resultErr(fmt.Errorf("search_posts: serialise: %w", err)), nil
	}
	return result, nil
}

func (s *Server) toolCreatePost() mcpsrv.ServerTool {
	tool := mcplib.NewTool("create_post",
		mcplib.WithDescription("Create a post in a channel as the authenticated user. Set 'root_id' to reply in a thread."),
		mcplib.WithString("channel_id",
			mcplib.Description("The channel to post in"),
			mcplib.Required(),
		),
		mcplib.WithString("message",
			mcplib.Description("The message text (Markdown is supported)"),
			mcplib.Required(),
		),
		mcplib.WithString("root_id",
			mcplib.Description("Thread root post ID when replying to a thread"),
		),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: s.handleCreatePost}
}

func (s *Server) handleCreatePost(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	channelID, ok := stringArg(req, "channel_id")
	if !ok || channelID == "" {
		return resultErr(errors.New("create_post: channel_id is required")), nil
	}
	message, ok := stringArg(req, "message")
	if !ok || message == "" {
		return resultErr(errors.New("create_post: message is required")), nil
	}
	rootID, _ := stringArg(req, "root_id")

	post, err := s.backend.CreatePost(ctx, mattermost.PostDraft{
		ChannelID: channelID,
		Message:   message,
		RootID:    rootID,
	})
	if err != nil {
		return toolError("create_post", err)
	}

	s.logger.Info().
		Str("channel_id", channelID).
		Str("post_id", post.ID).
		Msg("post created")

	result, err := resultJSON(mattermost.FormatPost(*post))
	if err != nil {
		return resultErr(fmt.Errorf("create_post: serialise: %w", err)), nil
	}
	return result, nil
}

func (s *Server) toolAddReaction() mcpsrv.ServerTool {
	tool := mcplib.NewTool("add_reaction",
		mcplib.WithDescription("Add an emoji reaction to a post as the authenticated user."),
		mcplib.WithString("post_id",
			mcplib.Description("The post to react to"),
			mcplib.Required(),
		),
		mcplib.WithString("emoji_name",
			mcplib.Description(`Emoji name without colons, e.g. "+1" or "tada"`),
			mcplib.Required(),
		),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: s.handleAddReaction}
}

func (s *Server) handleAddReaction(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	postID, ok := stringArg(req, "post_id")
	if !ok || postID == "" {
		return resultErr(errors.New("add_reaction: post_id is required")), nil
	}
	emoji, ok := stringArg(req, "emoji_name")
	if !ok || emoji == "" {
		return resultErr(errors.New("add_reaction: emoji_name is required")), nil
	}

	// The reactions endpoint wants the reacting user's ID; resolve the
	// token owner first.
	me, err := s.backend.Me(ctx)
	if err != nil {
		return toolError("add_reaction", err)
	}

	reaction, err := s.backend.AddReaction(ctx, me.ID, postID, emoji)
	if err != nil {
		return toolError("add_reaction", err)
	}

	s.logger.Info().
		Str("post_id", postID).
		Str("emoji", emoji).
		Msg("reaction added")

	result, err := resultJSON(mattermost.FormatReaction(*reaction))
	if err != nil {
		return resultErr(fmt.Errorf("add_reaction: serialise: %w", err)), nil
	}
	return result, nil
}
