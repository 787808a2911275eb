package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpsrv "github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/mmbridge/mattermost-mcp/pkg/logging"
	"github.com/mmbridge/mattermost-mcp/pkg/mattermost"
	"github.com/mmbridge/mattermost-mcp/pkg/pagination"
)

const (
	serverName    = "mattermost-mcp"
	serverVersion = "1.0.0"
)

// Transport selects how the MCP server communicates with its client.
type Transport string

const (
	// TransportStdio uses stdin/stdout for communication (default, suitable
	// for local agent integrations such as Claude Desktop).
	TransportStdio Transport = "stdio"
	// TransportHTTP uses Streamable HTTP transport (suitable for remote
	// agents or when multiple concurrent clients are needed).
	TransportHTTP Transport = "http"
)

// Backend is the Mattermost surface the tools call. *mattermost.Client
// satisfies it; tests may substitute their own.
type Backend interface {
	Channels(ctx context.Context, page, perPage int) (*mattermost.ChannelList, error)
	AllChannels(ctx context.Context, maxItems *int) (pagination.Result[mattermost.Channel], error)
	Channel(ctx context.Context, channelID string) (*mattermost.Channel, error)
	Users(ctx context.Context, page, perPage int) (*mattermost.UserList, error)
	AllUsers(ctx context.Context, maxItems *int) (pagination.Result[mattermost.User], error)
	User(ctx context.Context, userID string) (*mattermost.User, error)
	Me(ctx context.Context) (*mattermost.User, error)
	ChannelPosts(ctx context.Context, channelID string, page, perPage int, filter mattermost.PostFilter) (pagination.Page[mattermost.Post], error)
	AllChannelPosts(ctx context.Context, channelID string, filter mattermost.PostFilter, maxItems *int) (pagination.Result[mattermost.Post], error)
	ThreadPosts(ctx context.Context, postID string) ([]mattermost.Post, error)
	Reactions(ctx context.Context, postID string) ([]mattermost.Reaction, error)
	CreatePost(ctx context.Context, draft mattermost.PostDraft) (*mattermost.Post, error)
	AddReaction(ctx context.Context, userID, postID, emojiName string) (*mattermost.Reaction, error)
	SearchPosts(ctx context.Context, teamID, terms string, isOrSearch bool) (pagination.Page[mattermost.Post], error)
}

// Server wraps an MCP server and the Mattermost backend its tools call.
type Server struct {
	mcp     *mcpsrv.MCPServer
	backend Backend
	logger  zerolog.Logger
	name    string
	version string
}

// Option configures a Server before the underlying MCP server is built.
type Option func(*Server)

// WithLogger sets the logger used by the server and its tool handlers.
func WithLogger(lg zerolog.Logger) Option {
	return func(s *Server) { s.logger = lg }
}

// WithName overrides the advertised server name.
func WithName(name string) Option {
	return func(s *Server) { s.name = name }
}

// WithVersion overrides the advertised server version.
func WithVersion(version string) Option {
	return func(s *Server) { s.version = version }
}

// New creates a new MCP server backed by the given Backend. The server is
// populated with all available tools but does not start listening until one
// of the Serve* methods is called.
func New(backend Backend, opts ...Option) *Server {
	s := &Server{
		backend: backend,
		logger:  logging.NewLogger("mcp"),
		name:    serverName,
		version: serverVersion,
	}
	for _, opt := range opts {
		opt(s)
	}

	mcpServer := mcpsrv.NewMCPServer(
		s.name,
		s.version,
		mcpsrv.WithInstructions(instructions()),
	)

	// Register all tools.
	for _, t := range s.tools() {
		mcpServer.AddTool(t.Tool, t.Handler)
	}

	s.mcp = mcpServer
	return s
}

// instructions returns the server instructions that describe the backing
// Mattermost instance to the connecting agent.
func instructions() string {
	return `You are connected to a Mattermost MCP server.

The tools operate on a live Mattermost instance over its REST API, acting as
the authenticated user of the configured access token.

Available tools allow you to:
- List channels and users
- Read posts from a channel, with optional time and cursor filters
- Read whole threads and post reactions
- Search posts within a team
- Create posts and add reactions

Listing tools return one page at a time ('page' is 0-based, 'per_page' at
most 200). Pass 'all: true' to aggregate every page into one result,
optionally capped with 'limit'. Timestamps are reported as RFC 3339 UTC.
`
}

// AddTool adds an additional tool to the MCP server. It can be called after
// New but before serving starts.
func (s *Server) AddTool(tool mcpsrv.ServerTool) {
	s.mcp.AddTool(tool.Tool, tool.Handler)
}

// ServeStdio runs the MCP server over stdin/stdout until ctx is cancelled.
// This is the standard transport used by local agent integrations.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := mcpsrv.NewStdioServer(s.mcp)
	s.logger.Info().Msg("mcp server listening on stdio")
	if err := srv.Listen(ctx, os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("mcp stdio server error: %w", err)
	}
	return nil
}

// ServeHTTP runs the MCP server as a Streamable HTTP server on addr until
// ctx is cancelled. addr should be a host:port string such as "127.0.0.1:8480".
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	httpSrv := &http.Server{Addr: addr}
	streamSrv := mcpsrv.NewStreamableHTTPServer(s.mcp,
		mcpsrv.WithStreamableHTTPServer(httpSrv),
	)

	s.logger.Info().Str("addr", addr).Msg("mcp server listening on http")

	errCh := make(chan error, 1)
	go func() {
		if err := streamSrv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("mcp http server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info().Msg("mcp server shutting down")
		if err := streamSrv.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("mcp http server shutdown error: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

// tools returns all MCP tools that this server exposes.
func (s *Server) tools() []mcpsrv.ServerTool {
	return []mcpsrv.ServerTool{
		s.toolListChannels(),
		s.toolGetChannel(),
		s.toolListUsers(),
		s.toolGetUser(),
		s.toolGetMe(),
		s.toolGetChannelPosts(),
		s.toolGetThread(),
		s.toolGetPostReactions(),
		s.toolSearchPosts(),
		s.toolCreatePost(),
		s.toolAddReaction(),
	}
}

// resultText wraps text in a successful CallToolResult.
func resultText(text string) *mcplib.CallToolResult {
	return mcplib.NewToolResultText(text)
}

// resultErr wraps an error in a CallToolResult with IsError=true.
func resultErr(err error) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{mcplib.NewTextContent(err.Error())},
		IsError: true,
	}
}

// resultJSON serialises v to JSON and returns a CallToolResult.
func resultJSON(v any) (*mcplib.CallToolResult, error) {
	return mcplib.NewToolResultJSON(v)
}

// toolError converts a backend error into an IsError tool result, prefixed
// with the tool name. Context cancellation passes through as a real error so
// the transport can abort the call.
func toolError(tool string, err error) (*mcplib.CallToolResult, error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	return resultErr(fmt.Errorf("%s: %w", tool, err)), nil
}

// stringArg extracts a named string argument from a tool call request.
// Returns ("", false) if the argument is absent or not a string.
func stringArg(req mcplib.CallToolRequest, name string) (string, bool) {
	args := req.GetArguments()
	if args == nil {
		return "", false
	}
	v, ok := args[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// intArg extracts a named int argument from a tool call request. The MCP
// protocol serialises numbers as float64, so we convert accordingly.
func intArg(req mcplib.CallToolRequest, name string, defaultVal int) int {
	args := req.GetArguments()
	if args == nil {
		return defaultVal
	}
	v, ok := args[name]
	if !ok {
		return defaultVal
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return defaultVal
}

// boolArg extracts a named bool argument from a tool call request.
func boolArg(req mcplib.CallToolRequest, name string, defaultVal bool) bool {
	args := req.GetArguments()
	if args == nil {
		return defaultVal
	}
	v, ok := args[name]
	if !ok {
		return defaultVal
	}
	b, ok := v.(bool)
	if !ok {
		return defaultVal
	}
	return b
}
