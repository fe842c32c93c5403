// Package registry is the tool dispatch table. A FunctionProvider groups
// related tools (with optional custom Prometheus collectors); the
// Dispatcher indexes every provider's tools by exact name at startup and
// routes calls to them.
package registry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rhuss/chorus/pkg/provider"
	"github.com/rhuss/chorus/pkg/tools"
)

// FunctionProvider contributes one or more tools.
type FunctionProvider interface {
	// Name returns a unique identifier for this provider (e.g., "weather").
	Name() string

	// Tools returns the function definitions advertised to models.
	Tools() []provider.FunctionDefinition

	// Execute runs a call for one of the provider's tools. Errors should
	// be *api.Error; anything else is normalized by the Dispatcher.
	Execute(ctx context.Context, call tools.ToolCall, env tools.Env) (*tools.Result, error)

	// Collectors returns provider-specific Prometheus collectors.
	Collectors() []prometheus.Collector

	// Close releases any resources held by the provider.
	Close() error
}
