// Package mcp connects to external MCP (Model Context Protocol) servers
// and exposes their tools to the dispatcher. Each server becomes one
// registry.FunctionProvider whose tools are discovered once at startup.
//
// The package wraps the official MCP Go SDK
// (github.com/modelcontextprotocol/go-sdk). Servers are reached over
// streamable HTTP or SSE, optionally with static headers or OAuth 2.0
// client-credentials authentication.
package mcp
