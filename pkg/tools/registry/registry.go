package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rhuss/chorus/pkg/api"
	"github.com/rhuss/chorus/pkg/debug"
	"github.com/rhuss/chorus/pkg/observability"
	"github.com/rhuss/chorus/pkg/provider"
	"github.com/rhuss/chorus/pkg/tools"
)

var toolDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "chorus_tool_duration_seconds",
		Help:    "Tool execution duration",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	},
	[]string{"provider", "tool_name"},
)

func init() {
	prometheus.MustRegister(toolDuration)
}

// DefaultTimeout bounds a single tool execution when none is configured.
const DefaultTimeout = 60 * time.Second

// Dispatcher routes tool calls to providers by exact tool name. Providers
// are registered at startup; the table is read-only afterwards.
type Dispatcher struct {
	providers []FunctionProvider
	byTool    map[string]FunctionProvider
	order     []string
	timeout   time.Duration
}

// New creates an empty Dispatcher. A zero timeout selects DefaultTimeout.
func New(timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{
		byTool:  make(map[string]FunctionProvider),
		timeout: timeout,
	}
}

// Register adds a provider. A tool name already owned by another provider
// is an error; nothing from the conflicting provider is registered.
func (d *Dispatcher) Register(p FunctionProvider) error {
	defs := p.Tools()
	for _, def := range defs {
		if def.Name == "" {
			return fmt.Errorf("provider %q: tool with empty name", p.Name())
		}
		if existing, ok := d.byTool[def.Name]; ok {
			return fmt.Errorf("provider %q: tool %q already registered by %q", p.Name(), def.Name, existing.Name())
		}
	}

	d.providers = append(d.providers, p)
	for _, def := range defs {
		d.byTool[def.Name] = p
		d.order = append(d.order, def.Name)
	}

	for _, c := range p.Collectors() {
		if err := prometheus.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return fmt.Errorf("provider %q: registering collector: %w", p.Name(), err)
			}
		}
	}

	slog.Info("registered tool provider", "provider", p.Name(), "tools", len(defs))
	return nil
}

// Definitions returns every registered tool in registration order.
func (d *Dispatcher) Definitions() []provider.FunctionDefinition {
	var out []provider.FunctionDefinition
	for _, p := range d.providers {
		out = append(out, p.Tools()...)
	}
	return out
}

// Has reports whether a tool is registered.
func (d *Dispatcher) Has(name string) bool {
	_, ok := d.byTool[name]
	return ok
}

// Dispatch runs the call. Every failure comes back as an *api.Error:
// tool_not_found for unknown names, schema_mismatch for arguments that are
// not a JSON object, and the provider's own (normalized) error otherwise.
// A panicking provider is recovered and reported as a failure.
func (d *Dispatcher) Dispatch(ctx context.Context, call tools.ToolCall, env tools.Env) (result *tools.Result, err error) {
	p, ok := d.byTool[call.Name]
	if !ok {
		observability.ToolExecutionsTotal.WithLabelValues(call.Name, "not_found").Inc()
		return nil, d.notFound(call.Name)
	}

	if call.Arguments == "" {
		call.Arguments = "{}"
	}
	var probe map[string]json.RawMessage
	if jsonErr := json.Unmarshal([]byte(call.Arguments), &probe); jsonErr != nil {
		observability.ToolExecutionsTotal.WithLabelValues(call.Name, string(api.ErrorKindSchemaMismatch)).Inc()
		return nil, api.NewSchemaMismatch(call.Name, "arguments are not a JSON object: "+jsonErr.Error())
	}

	providerName := p.Name()
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("tool provider panicked",
				"provider", providerName,
				"tool", call.Name,
				"panic", rec,
			)
			result = nil
			err = api.NewTransportError(call.Name, fmt.Sprintf("tool %q failed unexpectedly", call.Name))
			observability.ToolExecutionsTotal.WithLabelValues(call.Name, "panic").Inc()
			toolDuration.WithLabelValues(providerName, call.Name).Observe(time.Since(start).Seconds())
		}
	}()

	debug.Log("tools", "dispatch", "tool", call.Name, "provider", providerName, "call_id", call.ID)
	debug.Trace("tools", "arguments", "tool", call.Name, "args", call.Arguments)

	result, err = p.Execute(ctx, call, env)
	toolDuration.WithLabelValues(providerName, call.Name).Observe(time.Since(start).Seconds())

	if err != nil {
		apiErr := api.Normalize(call.Name, err)
		observability.ToolExecutionsTotal.WithLabelValues(call.Name, string(apiErr.Kind)).Inc()
		return nil, apiErr
	}
	if result == nil {
		observability.ToolExecutionsTotal.WithLabelValues(call.Name, string(api.ErrorKindSchemaMismatch)).Inc()
		return nil, api.NewSchemaMismatch(call.Name, "tool returned no result")
	}

	result.ToolName = call.Name
	observability.ToolExecutionsTotal.WithLabelValues(call.Name, "ok").Inc()
	return result, nil
}

func (d *Dispatcher) notFound(name string) *api.Error {
	msg := fmt.Sprintf("no tool named %q", name)
	best, bestDist := "", -1
	for _, candidate := range d.order {
		dist := levenshtein.ComputeDistance(name, candidate)
		if bestDist < 0 || dist < bestDist {
			best, bestDist = candidate, dist
		}
	}
	if bestDist >= 0 && bestDist <= max(2, len(name)/3) {
		msg += fmt.Sprintf(" (did you mean %q?)", best)
	}
	return api.NewToolNotFound(name, msg)
}

// Close closes all providers and joins their errors.
func (d *Dispatcher) Close() error {
	var errs []error
	for _, p := range d.providers {
		if err := p.Close(); err != nil {
			slog.Warn("failed to close tool provider", "provider", p.Name(), "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
