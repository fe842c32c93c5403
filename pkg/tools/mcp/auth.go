package mcp

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const authOAuthClientCredentials = "oauth_client_credentials"

// httpClientFor returns the HTTP client for a server. It returns nil when
// neither headers nor auth are configured, leaving the SDK default.
func httpClientFor(cfg ServerConfig) (*http.Client, error) {
	var base http.RoundTripper = http.DefaultTransport
	if len(cfg.Headers) > 0 {
		base = &headerTransport{base: base, headers: cfg.Headers}
	}

	switch cfg.Auth.Type {
	case "":
		if len(cfg.Headers) == 0 {
			return nil, nil
		}
		return &http.Client{Transport: base}, nil

	case authOAuthClientCredentials:
		if cfg.Auth.TokenURL == "" || cfg.Auth.ClientID == "" {
			return nil, fmt.Errorf("oauth_client_credentials requires token_url and client_id")
		}
		cc := &clientcredentials.Config{
			ClientID:     cfg.Auth.ClientID,
			ClientSecret: cfg.Auth.ClientSecret,
			TokenURL:     cfg.Auth.TokenURL,
			Scopes:       cfg.Auth.Scopes,
		}
		// The token source outlives any single request, so it gets its own
		// context; tokens are cached and refreshed on expiry.
		ts := cc.TokenSource(context.Background())
		return &http.Client{Transport: &oauth2.Transport{Source: ts, Base: base}}, nil

	default:
		return nil, fmt.Errorf("unsupported auth type %q", cfg.Auth.Type)
	}
}

// headerTransport adds static headers to every request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}
