package mcp

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rhuss/chorus/pkg/api"
	"github.com/rhuss/chorus/pkg/debug"
	"github.com/rhuss/chorus/pkg/provider"
	"github.com/rhuss/chorus/pkg/tools"
	"github.com/rhuss/chorus/pkg/tools/registry"
)

var callsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chorus_mcp_tool_calls_total",
		Help: "Tool calls forwarded to MCP servers",
	},
	[]string{"server", "status"},
)

// Provider exposes one MCP server's tools to the dispatcher. The tool list
// is fixed when the provider is created.
type Provider struct {
	client *Client
	defs   []provider.FunctionDefinition
}

var _ registry.FunctionProvider = (*Provider)(nil)

// NewProvider discovers the client's tools. The provider owns the client
// and closes it on Close.
func NewProvider(ctx context.Context, client *Client) (*Provider, error) {
	defs, err := client.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	debug.Log("tools", "discovered MCP tools", "server", client.Name(), "count", len(defs))
	return &Provider{client: client, defs: defs}, nil
}

func (p *Provider) Name() string { return "mcp:" + p.client.Name() }

func (p *Provider) Tools() []provider.FunctionDefinition { return p.defs }

func (p *Provider) Execute(ctx context.Context, call tools.ToolCall, env tools.Env) (*tools.Result, error) {
	env.Report(ctx, fmt.Sprintf("Calling %s...", call.Name), nil)

	out, err := p.client.CallTool(ctx, call.Name, call.Arguments)
	if err != nil {
		callsTotal.WithLabelValues(p.client.Name(), "error").Inc()
		return nil, err
	}
	callsTotal.WithLabelValues(p.client.Name(), "success").Inc()

	return &tools.Result{
		RawContent: out,
		Fragment:   api.Fragment{Text: out},
	}, nil
}

func (p *Provider) Collectors() []prometheus.Collector {
	return []prometheus.Collector{callsTotal}
}

func (p *Provider) Close() error { return p.client.Close() }
