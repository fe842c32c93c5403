// Command server runs the chorus conversational orchestrator.
//
// Configuration is read from a YAML file (-config, CHORUS_CONFIG,
// ./config.yaml or /etc/chorus/config.yaml) and environment overrides:
//
//	OPENAI_API_KEY, FIREWORKS_API_KEY, GROQ_API_KEY, PERPLEXITY_API_KEY,
//	HUGGINGFACE_API_KEY, STABILITY_API_KEY - provider credentials
//	OPENWEATHERMAP_API_KEY, AVIATIONSTACK_API_KEY - tool credentials
//	CHORUS_PORT            - Listen port (default: 8080)
//	CHORUS_DEFAULT_BACKEND - Backend of new conversations
//	CHORUS_MCP_SERVERS     - JSON array of MCP server configurations
//	CHORUS_DEBUG           - Debug categories (e.g. "providers,tools" or "all")
//	CHORUS_LOG_LEVEL       - TRACE, DEBUG, INFO, WARN or ERROR
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/chorus/pkg/backend"
	"github.com/rhuss/chorus/pkg/config"
	"github.com/rhuss/chorus/pkg/conversation"
	"github.com/rhuss/chorus/pkg/debug"
	"github.com/rhuss/chorus/pkg/engine"
	"github.com/rhuss/chorus/pkg/provider"
	"github.com/rhuss/chorus/pkg/provider/huggingface"
	"github.com/rhuss/chorus/pkg/provider/openaicompat"
	"github.com/rhuss/chorus/pkg/provider/openaiimage"
	"github.com/rhuss/chorus/pkg/provider/stabilityai"
	"github.com/rhuss/chorus/pkg/tools/builtins/flight"
	"github.com/rhuss/chorus/pkg/tools/builtins/imagegen"
	"github.com/rhuss/chorus/pkg/tools/builtins/weather"
	"github.com/rhuss/chorus/pkg/tools/mcp"
	"github.com/rhuss/chorus/pkg/tools/registry"
	transporthttp "github.com/rhuss/chorus/pkg/transport/http"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := debug.Init(debug.Options{
		Categories: cfg.Logging.Debug,
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	descs, presets := cfg.BackendCatalog()
	backends, err := backend.New(descs, cfg.Engine.DefaultBackend, backend.WithPresets(presets))
	if err != nil {
		return fmt.Errorf("building backend registry: %w", err)
	}

	adapters, err := buildAdapters(cfg)
	if err != nil {
		return err
	}
	if _, err := adapters.Chat(backends.Default()); err != nil {
		slog.Warn("default backend has no configured provider; new conversations need an explicit backend",
			"backend", backends.Default().ID, "provider", backends.Default().Provider)
	}

	dispatcher, err := buildTools(ctx, cfg, backends, adapters)
	if err != nil {
		return err
	}
	defer dispatcher.Close()

	eng, err := engine.New(backends, adapters, conversation.NewManager(cfg.Engine.MaxConversations), dispatcher, engine.Config{
		SystemPrompt:         cfg.Engine.SystemPrompt,
		TurnTimeout:          cfg.Engine.TurnTimeout,
		BroadcastConcurrency: cfg.Engine.BroadcastConcurrency,
	})
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	srv := transporthttp.NewServer(eng,
		transporthttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transporthttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithLogger(logger),
	)
	if cfg.Observability.Metrics.Enabled {
		srv.Handle("GET "+cfg.Observability.Metrics.Path, promhttp.Handler())
	}

	slog.Info("chorus ready",
		"port", cfg.Server.Port,
		"default_backend", cfg.Engine.DefaultBackend,
		"backends", len(backends.List()),
		"tools", len(dispatcher.Definitions()))

	return srv.ListenAndServe(ctx)
}

// buildAdapters registers an adapter for every enabled provider.
func buildAdapters(cfg *config.Config) (*provider.Set, error) {
	set := provider.NewSet()
	timeout := cfg.Engine.RequestTimeout

	for _, name := range []string{config.ProviderOpenAI, config.ProviderFireworks, config.ProviderGroq, config.ProviderPerplexity} {
		p := cfg.Providers[name]
		if !p.Enabled() {
			continue
		}
		baseURL := p.BaseURL
		if baseURL == "" {
			baseURL = openaicompat.DefaultBaseURL(name)
		}
		set.RegisterChat(name, openaicompat.NewClient(name, baseURL, p.APIKey, timeout))
		slog.Info("chat provider enabled", "provider", name, "base_url", baseURL)
	}

	images := []struct {
		kind backend.ProviderKind
		name string
		make func(baseURL, apiKey string) provider.ImageAdapter
	}{
		{backend.KindImageOpenAI, config.ProviderOpenAI, func(u, k string) provider.ImageAdapter { return openaiimage.New(u, k, timeout) }},
		{backend.KindImageHuggingFace, config.ProviderHuggingFace, func(u, k string) provider.ImageAdapter { return huggingface.New(u, k, timeout) }},
		{backend.KindImageStabilityAI, config.ProviderStability, func(u, k string) provider.ImageAdapter { return stabilityai.New(u, k, timeout) }},
	}
	for _, img := range images {
		p := cfg.Providers[img.name]
		if !p.Enabled() {
			continue
		}
		if err := set.RegisterImage(img.kind, img.name, img.make(p.BaseURL, p.APIKey)); err != nil {
			return nil, fmt.Errorf("registering %s image adapter: %w", img.name, err)
		}
		slog.Info("image provider enabled", "provider", img.name, "kind", img.kind)
	}
	return set, nil
}

// buildTools assembles the static tool table. Tools whose service is not
// configured are left out; an unreachable MCP server is logged and
// skipped.
func buildTools(ctx context.Context, cfg *config.Config, backends *backend.Registry, adapters *provider.Set) (*registry.Dispatcher, error) {
	d := registry.New(cfg.Engine.ToolTimeout)
	client := &http.Client{Timeout: cfg.Engine.RequestTimeout}

	if w := cfg.Tools.Weather; w.APIKey != "" {
		if err := d.Register(weather.New(weather.NewOpenWeatherMap(w.BaseURL, w.APIKey, client))); err != nil {
			return nil, err
		}
	}
	if f := cfg.Tools.Flight; f.APIKey != "" {
		if err := d.Register(flight.New(flight.NewAviationStack(f.BaseURL, f.APIKey, client))); err != nil {
			return nil, err
		}
	}
	if hasImageAdapter(backends, adapters) {
		if err := d.Register(imagegen.New(backends, adapters, cfg.Tools.ImageTimeout)); err != nil {
			return nil, err
		}
	}

	for _, s := range cfg.MCP.Servers {
		p, err := connectMCP(ctx, s)
		if err != nil {
			slog.Warn("skipping MCP server", "server", s.Name, "error", err)
			continue
		}
		if err := d.Register(p); err != nil {
			p.Close()
			slog.Warn("skipping MCP server", "server", s.Name, "error", err)
		}
	}

	return d, nil
}

func connectMCP(ctx context.Context, s config.MCPServerConfig) (*mcp.Provider, error) {
	client, err := mcp.Connect(ctx, mcp.ServerConfig{
		Name:      s.Name,
		Transport: s.Transport,
		URL:       s.URL,
		Headers:   s.Headers,
		Auth: mcp.AuthConfig{
			Type:         s.Auth.Type,
			TokenURL:     s.Auth.TokenURL,
			ClientID:     s.Auth.ClientID,
			ClientSecret: s.Auth.ClientSecret,
			Scopes:       s.Auth.Scopes,
		},
	})
	if err != nil {
		return nil, err
	}
	p, err := mcp.NewProvider(ctx, client)
	if err != nil {
		client.Close()
		return nil, err
	}
	return p, nil
}

func hasImageAdapter(backends *backend.Registry, adapters *provider.Set) bool {
	for _, d := range backends.Images() {
		if _, err := adapters.Image(d); err == nil {
			return true
		}
	}
	return false
}
