package mcp

// ServerConfig describes a single MCP server connection.
type ServerConfig struct {
	// Name identifies the server in logs and metrics.
	Name string `json:"name" yaml:"name"`

	// Transport is "sse" or "streamable-http" (the default).
	Transport string `json:"transport,omitempty" yaml:"transport"`

	URL string `json:"url" yaml:"url"`

	// Headers are sent with every request, typically API keys.
	Headers map[string]string `json:"headers,omitempty" yaml:"headers"`

	Auth AuthConfig `json:"auth,omitempty" yaml:"auth"`
}

// AuthConfig selects dynamic authentication for a server.
type AuthConfig struct {
	// Type is empty or "oauth_client_credentials".
	Type         string   `json:"type,omitempty" yaml:"type"`
	TokenURL     string   `json:"token_url,omitempty" yaml:"token_url"`
	ClientID     string   `json:"client_id,omitempty" yaml:"client_id"`
	ClientSecret string   `json:"client_secret,omitempty" yaml:"client_secret"`
	Scopes       []string `json:"scopes,omitempty" yaml:"scopes"`
}
