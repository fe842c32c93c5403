package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rhuss/chorus/pkg/api"
	"github.com/rhuss/chorus/pkg/provider"
)

// Client is a session with one MCP server.
type Client struct {
	cfg     ServerConfig
	session *mcp.ClientSession
}

// Connect opens a session using the transport described by cfg.
func Connect(ctx context.Context, cfg ServerConfig) (*Client, error) {
	t, err := transportFor(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating transport for %q: %w", cfg.Name, err)
	}
	return ConnectWithTransport(ctx, cfg, t)
}

// ConnectWithTransport opens a session over an existing transport.
func ConnectWithTransport(ctx context.Context, cfg ServerConfig, transport mcp.Transport) (*Client, error) {
	client := mcp.NewClient(
		&mcp.Implementation{Name: "chorus", Version: "1.0.0"},
		&mcp.ClientOptions{Capabilities: &mcp.ClientCapabilities{}},
	)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to MCP server %q: %w", cfg.Name, err)
	}
	return &Client{cfg: cfg, session: session}, nil
}

func transportFor(cfg ServerConfig) (mcp.Transport, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("missing url")
	}
	httpClient, err := httpClientFor(cfg)
	if err != nil {
		return nil, err
	}

	switch cfg.Transport {
	case "sse":
		t := &mcp.SSEClientTransport{Endpoint: cfg.URL}
		if httpClient != nil {
			t.HTTPClient = httpClient
		}
		return t, nil
	case "streamable-http", "":
		t := &mcp.StreamableClientTransport{Endpoint: cfg.URL}
		if httpClient != nil {
			t.HTTPClient = httpClient
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unsupported transport type %q", cfg.Transport)
	}
}

// Name returns the configured server name.
func (c *Client) Name() string { return c.cfg.Name }

// ListTools returns the server's tools as function definitions.
func (c *Client) ListTools(ctx context.Context) ([]provider.FunctionDefinition, error) {
	var defs []provider.FunctionDefinition
	for tool, err := range c.session.Tools(ctx, nil) {
		if err != nil {
			return nil, fmt.Errorf("listing tools from %q: %w", c.cfg.Name, err)
		}
		def, err := convertTool(tool)
		if err != nil {
			return nil, fmt.Errorf("converting tool %q from %q: %w", tool.Name, c.cfg.Name, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// CallTool runs a tool and returns its text output. A result flagged as an
// error by the server comes back as a provider rejection carrying that text.
func (c *Client) CallTool(ctx context.Context, name, arguments string) (string, error) {
	var args map[string]any
	if arguments != "" {
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return "", api.NewSchemaMismatch(name, fmt.Sprintf("invalid arguments JSON: %v", err))
		}
	}

	res, err := c.session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return "", api.Normalize(c.cfg.Name, err)
	}

	out := textOf(res)
	if res.IsError {
		if out == "" {
			out = fmt.Sprintf("tool %q reported an error", name)
		}
		return "", api.NewProviderRejection(c.cfg.Name, 0, out, false)
	}
	return out, nil
}

// Close ends the session.
func (c *Client) Close() error {
	return c.session.Close()
}

func convertTool(t *mcp.Tool) (provider.FunctionDefinition, error) {
	var params json.RawMessage
	if t.InputSchema != nil {
		data, err := json.Marshal(t.InputSchema)
		if err != nil {
			return provider.FunctionDefinition{}, fmt.Errorf("marshaling input schema: %w", err)
		}
		params = data
	}
	return provider.FunctionDefinition{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  params,
	}, nil
}

func textOf(res *mcp.CallToolResult) string {
	var parts []string
	for _, content := range res.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
