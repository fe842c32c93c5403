// Package config provides unified configuration for the chorus server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (provider keys and CHORUS_ variables)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import (
	"time"

	"github.com/rhuss/chorus/pkg/backend"
)

// Provider names used as keys of Config.Providers.
const (
	ProviderOpenAI      = "openai"
	ProviderFireworks   = "fireworksai"
	ProviderGroq        = "groq"
	ProviderPerplexity  = "perplexity"
	ProviderHuggingFace = "huggingface"
	ProviderStability   = "stabilityai"
)

// KnownProviders lists every provider name the server can wire.
var KnownProviders = []string{
	ProviderOpenAI, ProviderFireworks, ProviderGroq, ProviderPerplexity,
	ProviderHuggingFace, ProviderStability,
}

// Config holds all configuration for the chorus server.
type Config struct {
	Server        ServerConfig              `yaml:"server"`
	Engine        EngineConfig              `yaml:"engine"`
	Providers     map[string]ProviderConfig `yaml:"providers"`
	Tools         ToolsConfig               `yaml:"tools"`
	MCP           MCPConfig                 `yaml:"mcp"`
	Logging       LoggingConfig             `yaml:"logging"`
	Observability ObservabilityConfig       `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 30s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 0 (turn streams are long)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 15s
}

// EngineConfig holds turn coordination settings.
type EngineConfig struct {
	DefaultBackend       string        `yaml:"default_backend"`       // default: gpt-3.5-turbo
	SystemPrompt         string        `yaml:"system_prompt"`         // default: "You are a helpful assistant"
	TurnTimeout          time.Duration `yaml:"turn_timeout"`          // default: 5m
	RequestTimeout       time.Duration `yaml:"request_timeout"`       // upstream response header timeout, default: 60s
	ToolTimeout          time.Duration `yaml:"tool_timeout"`          // default: 60s
	MaxConversations     int           `yaml:"max_conversations"`     // default: 1000, 0 = unlimited
	BroadcastConcurrency int           `yaml:"broadcast_concurrency"` // default: 0 (unlimited)

	// Backends replaces the built-in catalog when non-empty.
	Backends []backend.Descriptor `yaml:"backends"`

	// Presets replaces the built-in presets when non-empty.
	Presets map[string][]string `yaml:"presets"`
}

// ProviderConfig holds credentials and an optional endpoint override for
// one upstream provider.
type ProviderConfig struct {
	APIKey     string `yaml:"api_key"`
	APIKeyFile string `yaml:"api_key_file"` // _file variant for api_key
	BaseURL    string `yaml:"base_url"`     // empty = public endpoint
}

// Enabled reports whether the provider has enough configuration to be
// wired. A base URL alone is enough for keyless local endpoints.
func (p ProviderConfig) Enabled() bool {
	return p.APIKey != "" || p.BaseURL != ""
}

// ToolsConfig holds settings of the built-in tools.
type ToolsConfig struct {
	Weather ServiceConfig `yaml:"weather"`
	Flight  ServiceConfig `yaml:"flight"`

	// ImageTimeout bounds each image backend of generate_images.
	ImageTimeout time.Duration `yaml:"image_timeout"` // default: 45s
}

// ServiceConfig configures a keyed HTTP service used by a tool.
type ServiceConfig struct {
	APIKey     string `yaml:"api_key"`
	APIKeyFile string `yaml:"api_key_file"`
	BaseURL    string `yaml:"base_url"`
}

// MCPConfig holds MCP (Model Context Protocol) server settings.
type MCPConfig struct {
	Servers []MCPServerConfig `yaml:"servers"`
}

// MCPServerConfig describes a single MCP server connection.
type MCPServerConfig struct {
	Name      string            `yaml:"name" json:"name"`
	Transport string            `yaml:"transport" json:"transport"` // "sse" or "streamable-http"
	URL       string            `yaml:"url" json:"url"`
	Headers   map[string]string `yaml:"headers" json:"headers"`
	Auth      MCPAuthConfig     `yaml:"auth" json:"auth"`
}

// MCPAuthConfig holds OAuth client-credentials settings for an MCP server.
type MCPAuthConfig struct {
	Type             string   `yaml:"type" json:"type"` // "" or "oauth_client_credentials"
	TokenURL         string   `yaml:"token_url" json:"token_url"`
	ClientID         string   `yaml:"client_id" json:"client_id"`
	ClientIDFile     string   `yaml:"client_id_file" json:"client_id_file"`
	ClientSecret     string   `yaml:"client_secret" json:"client_secret"`
	ClientSecretFile string   `yaml:"client_secret_file" json:"client_secret_file"`
	Scopes           []string `yaml:"scopes" json:"scopes"`
}

// LoggingConfig holds log output settings. CHORUS_LOG_LEVEL and
// CHORUS_DEBUG override level and categories.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // TRACE, DEBUG, INFO, WARN, ERROR; default: INFO
	Format string `yaml:"format"` // "text" or "json", default: "text"
	Debug  string `yaml:"debug"`  // comma-separated debug categories
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Engine: EngineConfig{
			DefaultBackend:   backend.DefaultID,
			SystemPrompt:     "You are a helpful assistant",
			TurnTimeout:      5 * time.Minute,
			RequestTimeout:   60 * time.Second,
			ToolTimeout:      60 * time.Second,
			MaxConversations: 1000,
		},
		Providers: map[string]ProviderConfig{},
		Tools: ToolsConfig{
			ImageTimeout: 45 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}

// BackendCatalog returns the configured backends and presets, falling back
// to the built-in catalog.
func (c *Config) BackendCatalog() ([]backend.Descriptor, map[string][]string) {
	descs := c.Engine.Backends
	if len(descs) == 0 {
		descs = backend.Catalog()
	}
	presets := c.Engine.Presets
	if len(presets) == 0 {
		presets = backend.CatalogPresets()
	}
	return descs, presets
}
