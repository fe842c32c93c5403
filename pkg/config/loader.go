package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// providerKeyEnv maps provider API key variables to provider names.
var providerKeyEnv = map[string]string{
	"OPENAI_API_KEY":      ProviderOpenAI,
	"FIREWORKS_API_KEY":   ProviderFireworks,
	"GROQ_API_KEY":        ProviderGroq,
	"PERPLEXITY_API_KEY":  ProviderPerplexity,
	"HUGGINGFACE_API_KEY": ProviderHuggingFace,
	"STABILITY_API_KEY":   ProviderStability,
}

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, CHORUS_CONFIG env, ./config.yaml, /etc/chorus/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile returns the first config file found, or "".
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv("CHORUS_CONFIG"); envPath != "" {
		return envPath
	}
	for _, path := range []string{"config.yaml", "/etc/chorus/config.yaml"} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// loadYAMLFile reads and parses a YAML file into cfg. Fields not present
// in the YAML keep their current values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) error {
	if cfg.Providers == nil {
		cfg.Providers = map[string]ProviderConfig{}
	}
	for env, name := range providerKeyEnv {
		if v := os.Getenv(env); v != "" {
			p := cfg.Providers[name]
			p.APIKey = v
			cfg.Providers[name] = p
		}
	}

	if v := os.Getenv("OPENWEATHERMAP_API_KEY"); v != "" {
		cfg.Tools.Weather.APIKey = v
	}
	if v := os.Getenv("AVIATIONSTACK_API_KEY"); v != "" {
		cfg.Tools.Flight.APIKey = v
	}

	if v := os.Getenv("CHORUS_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CHORUS_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("CHORUS_DEFAULT_BACKEND"); v != "" {
		cfg.Engine.DefaultBackend = v
	}
	if v := os.Getenv("CHORUS_MCP_SERVERS"); v != "" {
		servers, err := parseMCPServersJSON(v)
		if err != nil {
			return err
		}
		cfg.MCP.Servers = servers
	}
	return nil
}

// parseMCPServersJSON parses a JSON array of MCP server configurations.
func parseMCPServersJSON(jsonStr string) ([]MCPServerConfig, error) {
	var servers []MCPServerConfig
	if err := json.Unmarshal([]byte(jsonStr), &servers); err != nil {
		return nil, fmt.Errorf("parsing CHORUS_MCP_SERVERS: %w", err)
	}
	return servers, nil
}

// resolveFileReferences fills empty secret fields from their _file
// counterparts. An explicit value always wins.
func resolveFileReferences(cfg *Config) error {
	for name, p := range cfg.Providers {
		if p.APIKeyFile != "" && p.APIKey == "" {
			val, err := readSecretFile(p.APIKeyFile)
			if err != nil {
				return fmt.Errorf("providers.%s.api_key_file: %w", name, err)
			}
			p.APIKey = val
			cfg.Providers[name] = p
		}
	}

	for field, svc := range map[string]*ServiceConfig{
		"tools.weather": &cfg.Tools.Weather,
		"tools.flight":  &cfg.Tools.Flight,
	} {
		if svc.APIKeyFile != "" && svc.APIKey == "" {
			val, err := readSecretFile(svc.APIKeyFile)
			if err != nil {
				return fmt.Errorf("%s.api_key_file: %w", field, err)
			}
			svc.APIKey = val
		}
	}

	for i := range cfg.MCP.Servers {
		a := &cfg.MCP.Servers[i].Auth
		if a.ClientIDFile != "" && a.ClientID == "" {
			val, err := readSecretFile(a.ClientIDFile)
			if err != nil {
				return fmt.Errorf("mcp.servers[%d].auth.client_id_file: %w", i, err)
			}
			a.ClientID = val
		}
		if a.ClientSecretFile != "" && a.ClientSecret == "" {
			val, err := readSecretFile(a.ClientSecretFile)
			if err != nil {
				return fmt.Errorf("mcp.servers[%d].auth.client_secret_file: %w", i, err)
			}
			a.ClientSecret = val
		}
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
