package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rhuss/chorus/pkg/api"
	"github.com/rhuss/chorus/pkg/debug"
	"github.com/rhuss/chorus/pkg/observability"
	"github.com/rhuss/chorus/pkg/provider"
)

// Well-known base URLs for the supported chat providers.
const (
	OpenAIBaseURL     = "https://api.openai.com/v1"
	FireworksBaseURL  = "https://api.fireworks.ai/inference/v1"
	GroqBaseURL       = "https://api.groq.com/openai/v1"
	PerplexityBaseURL = "https://api.perplexity.ai"
)

// DefaultBaseURL returns the base URL for a known provider name, or "".
func DefaultBaseURL(providerName string) string {
	switch providerName {
	case "openai":
		return OpenAIBaseURL
	case "fireworksai":
		return FireworksBaseURL
	case "groq":
		return GroqBaseURL
	case "perplexity":
		return PerplexityBaseURL
	}
	return ""
}

// Client streams chat completions from one OpenAI-compatible endpoint.
type Client struct {
	name       string
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

var _ provider.ChatAdapter = (*Client)(nil)

// NewClient creates a Client. timeout bounds the wait for response headers;
// once streaming starts only ctx limits the stream.
func NewClient(name, baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		name: name,
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: timeout,
				MaxIdleConnsPerHost:   8,
			},
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

// Name returns the provider name.
func (c *Client) Name() string { return c.name }

// StreamChat sends the request and returns a channel of events. The
// channel is closed when the stream completes, fails or ctx is cancelled.
func (c *Client) StreamChat(ctx context.Context, req *provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	start := time.Now()

	body, err := json.Marshal(TranslateToChat(req))
	if err != nil {
		return nil, api.NewSchemaMismatch(c.name, fmt.Sprintf("failed to marshal request: %s", err))
	}

	url := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, api.NewTransportError(c.name, fmt.Sprintf("failed to create HTTP request: %s", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	debug.Log("providers", "chat request",
		"provider", c.name, "url", url, "model", req.Model,
		"messages", len(req.Messages), "functions", len(req.Functions))
	debug.Trace("providers", "chat request body", "body", string(body))

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		apiErr := MapNetworkError(c.name, err)
		observability.ObserveProvider(c.name, req.Model, string(apiErr.Kind), start)
		return nil, apiErr
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		defer httpResp.Body.Close()
		apiErr := MapHTTPError(c.name, httpResp)
		observability.ObserveProvider(c.name, req.Model, string(apiErr.Kind), start)
		return nil, apiErr
	}
	observability.ObserveProvider(c.name, req.Model, "ok", start)

	ch := make(chan provider.ChatEvent, 16)
	go func() {
		defer close(ch)
		defer httpResp.Body.Close()
		ParseSSEStream(ctx, c.name, httpResp.Body, ch)
	}()

	return ch, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
