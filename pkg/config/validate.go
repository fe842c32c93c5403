package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Validate checks the configuration for required fields and valid values.
// All problems are reported together, each with its field path.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}

	if c.Engine.DefaultBackend == "" {
		errs = append(errs, fmt.Errorf("engine.default_backend is required"))
	}
	for field, d := range map[string]int64{
		"engine.turn_timeout":    int64(c.Engine.TurnTimeout),
		"engine.request_timeout": int64(c.Engine.RequestTimeout),
		"engine.tool_timeout":    int64(c.Engine.ToolTimeout),
		"tools.image_timeout":    int64(c.Tools.ImageTimeout),
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", field))
		}
	}
	if c.Engine.MaxConversations < 0 {
		errs = append(errs, fmt.Errorf("engine.max_conversations must not be negative, got %d", c.Engine.MaxConversations))
	}

	for name := range c.Providers {
		if !slices.Contains(KnownProviders, name) {
			errs = append(errs, fmt.Errorf("providers.%s: unknown provider (known: %s)", name, strings.Join(KnownProviders, ", ")))
		}
	}

	seen := map[string]bool{}
	for i, s := range c.MCP.Servers {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("mcp.servers[%d].name is required", i))
		} else if seen[s.Name] {
			errs = append(errs, fmt.Errorf("mcp.servers[%d].name %q is duplicated", i, s.Name))
		}
		seen[s.Name] = true
		if s.URL == "" {
			errs = append(errs, fmt.Errorf("mcp.servers[%d].url is required", i))
		}
		switch s.Transport {
		case "", "sse", "streamable-http":
		default:
			errs = append(errs, fmt.Errorf("mcp.servers[%d].transport must be \"sse\" or \"streamable-http\", got %q", i, s.Transport))
		}
		switch s.Auth.Type {
		case "":
		case "oauth_client_credentials":
			if s.Auth.TokenURL == "" || s.Auth.ClientID == "" {
				errs = append(errs, fmt.Errorf("mcp.servers[%d].auth requires token_url and client_id", i))
			}
		default:
			errs = append(errs, fmt.Errorf("mcp.servers[%d].auth.type %q is not supported", i, s.Auth.Type))
		}
	}

	switch strings.ToUpper(c.Logging.Level) {
	case "", "TRACE", "DEBUG", "INFO", "WARN", "ERROR":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be TRACE, DEBUG, INFO, WARN or ERROR, got %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format))
	}

	if c.Observability.Metrics.Enabled && !strings.HasPrefix(c.Observability.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("observability.metrics.path must start with /, got %q", c.Observability.Metrics.Path))
	}

	return errors.Join(errs...)
}
