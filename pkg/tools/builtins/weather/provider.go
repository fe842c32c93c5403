// Package weather provides the get_current_weather tool.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rhuss/chorus/pkg/api"
	"github.com/rhuss/chorus/pkg/provider"
	"github.com/rhuss/chorus/pkg/tools"
	"github.com/rhuss/chorus/pkg/tools/registry"
)

const toolName = "get_current_weather"

var toolParametersJSON = json.RawMessage(`{"type":"object","properties":{"city":{"type":"string","description":"The city, e.g. San Francisco"},"unit":{"type":"string","enum":["celsius","fahrenheit"]}},"required":["city"]}`)

// Provider implements registry.FunctionProvider for weather lookups.
type Provider struct {
	adapter Adapter
	lookups *prometheus.CounterVec
}

var _ registry.FunctionProvider = (*Provider)(nil)

// New creates a Provider backed by adapter.
func New(adapter Adapter) *Provider {
	return &Provider{
		adapter: adapter,
		lookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chorus_weather_lookups_total",
				Help: "Weather lookups",
			},
			[]string{"unit", "status"},
		),
	}
}

func (p *Provider) Name() string { return "weather" }

func (p *Provider) Tools() []provider.FunctionDefinition {
	return []provider.FunctionDefinition{{
		Name:        toolName,
		Description: "Get the current weather in a given city",
		Parameters:  toolParametersJSON,
	}}
}

// Execute looks up the weather and returns a weather card.
func (p *Provider) Execute(ctx context.Context, call tools.ToolCall, env tools.Env) (*tools.Result, error) {
	var args struct {
		City string `json:"city"`
		Unit Unit   `json:"unit"`
	}
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return nil, api.NewSchemaMismatch(toolName, fmt.Sprintf("invalid arguments: %v", err))
	}
	args.City = strings.TrimSpace(args.City)
	if args.City == "" {
		return nil, api.NewSchemaMismatch(toolName, "city must not be empty")
	}
	switch args.Unit {
	case "":
		args.Unit = Celsius
	case Celsius, Fahrenheit:
	default:
		return nil, api.NewSchemaMismatch(toolName, fmt.Sprintf("unknown unit %q", args.Unit))
	}

	env.Report(ctx, fmt.Sprintf("Checking the weather in %s...", args.City), nil)

	rep, err := p.adapter.Current(ctx, args.City, args.Unit)
	if err != nil {
		p.lookups.WithLabelValues(string(args.Unit), "error").Inc()
		return nil, err
	}
	p.lookups.WithLabelValues(string(args.Unit), "success").Inc()

	raw, _ := json.Marshal(rep)
	return &tools.Result{
		RawContent: string(raw),
		Fragment: api.Fragment{
			Text: formatReport(rep),
			Data: rep,
		},
	}, nil
}

func (p *Provider) Collectors() []prometheus.Collector {
	return []prometheus.Collector{p.lookups}
}

func (p *Provider) Close() error { return nil }

func formatReport(r *Report) string {
	sym := "°C"
	if r.Unit == Fahrenheit {
		sym = "°F"
	}
	return fmt.Sprintf("%s: %s, %.1f%s, humidity %d%%", r.City, r.Description, r.Temperature, sym, r.Humidity)
}
