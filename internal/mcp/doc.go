// Package mcp implements a Model Context Protocol (MCP) server over the
// Mattermost REST API. It exposes channels, users, posts, threads, and
// reactions through MCP tools that AI agents can call to read from and post
// to a live Mattermost instance.
//
// Listing tools operate in two modes: a single page (the upstream's 0-based
// page/per_page scheme) or an aggregated walk over every page, optionally
// capped. Aggregation is handled by pkg/pagination; the tools only choose the
// mode and render the result.
//
// Transport: the server supports two transports selectable at runtime:
//   - stdio  – standard MCP stdio transport (default); suitable for local
//     agent integration (e.g. Claude Desktop, VS Code Copilot).
//   - http   – Streamable HTTP transport; suitable for remote agents or when
//     multiple concurrent clients are needed.
package mcp
