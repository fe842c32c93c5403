// Package flight provides the get_flight_info tool.
package flight

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

const toolName = "get_flight_info"

var toolParametersJSON = json.RawMessage(`{"type":"object","properties":{"flightNumber":{"type":"string","description":"The number of the flight, e.g. BA142"}},"required":["flightNumber"]}`)

// Provider implements registry.FunctionProvider for flight lookups.
type Provider struct {
	lookup  Lookup
	queries *prometheus.CounterVec
}

var _ registry.FunctionProvider = (*Provider)(nil)

// New creates a Provider backed by lookup.
func New(lookup Lookup) *Provider {
	return &Provider{
		lookup: lookup,
		queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chorus_flight_lookups_total",
				Help: "Flight information lookups",
			},
			[]string{"status"},
		),
	}
}

func (p *Provider) Name() string { return "flight" }

func (p *Provider) Tools() []provider.FunctionDefinition {
	return []provider.FunctionDefinition{{
		Name:        toolName,
		Description: "Get the information for a flight",
		Parameters:  toolParametersJSON,
	}}
}

func (p *Provider) Execute(ctx context.Context, call tools.ToolCall, env tools.Env) (*tools.Result, error) {
	var args struct {
		FlightNumber string `json:"flightNumber"`
	}
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return nil, api.NewSchemaMismatch(toolName, fmt.Sprintf("invalid arguments: %v", err))
	}
	number := strings.ToUpper(strings.ReplaceAll(args.FlightNumber, " ", ""))
	if number == "" {
		return nil, api.NewSchemaMismatch(toolName, "flightNumber must not be empty")
	}

	env.Report(ctx, fmt.Sprintf("Looking up flight %s...", number), nil)

	info, err := p.lookup.Flight(ctx, number)
	if err != nil {
		p.queries.WithLabelValues("error").Inc()
		return nil, err
	}
	p.queries.WithLabelValues("success").Inc()

	raw, _ := json.Marshal(info)
	return &tools.Result{
		RawContent: string(raw),
		Fragment: api.Fragment{
			Text: fmt.Sprintf("Flight %s: %s to %s", info.FlightNumber, place(info.Departure), place(info.Arrival)),
			Data: info,
		},
	}, nil
}

func (p *Provider) Collectors() []prometheus.Collector {
	return []prometheus.Collector{p.queries}
}

func (p *Provider) Close() error { return nil }

func place(e Endpoint) string {
	switch {
	case e.Airport != "" && e.IATA != "":
		return fmt.Sprintf("%s (%s)", e.Airport, e.IATA)
	case e.Airport != "":
		return e.Airport
	case e.IATA != "":
		return e.IATA
	}
	return "unknown"
}
