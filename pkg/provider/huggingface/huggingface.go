// Package huggingface is the image adapter for the Hugging Face Inference
// API. Text-to-image models answer with raw image bytes, which are returned
// inline as a data: URL.
package huggingface

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/rhuss/chorus/pkg/api"
	"github.com/rhuss/chorus/pkg/debug"
	"github.com/rhuss/chorus/pkg/observability"
	"github.com/rhuss/chorus/pkg/provider"
	"github.com/rhuss/chorus/pkg/provider/openaicompat"
)

const (
	providerName   = "huggingface"
	DefaultBaseURL = "https://api-inference.huggingface.co/models"

	maxImageBytes = 16 << 20
)

// Adapter posts prompts to {baseURL}/{modelID}.
type Adapter struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

var _ provider.ImageAdapter = (*Adapter)(nil)

// New creates an Adapter. An empty baseURL selects the public inference API.
func New(baseURL, apiKey string, timeout time.Duration) *Adapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Adapter{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

func (a *Adapter) Name() string { return providerName }

// GenerateImage runs the model and returns the image inline.
func (a *Adapter) GenerateImage(ctx context.Context, prompt, modelID string) (*provider.Image, error) {
	start := time.Now()
	img, err := a.generate(ctx, prompt, modelID)
	if err != nil {
		observability.ObserveProvider(providerName, modelID, string(err.Kind), start)
		return nil, err
	}
	observability.ObserveProvider(providerName, modelID, "ok", start)
	return img, nil
}

func (a *Adapter) generate(ctx context.Context, prompt, modelID string) (*provider.Image, *api.Error) {
	body, _ := json.Marshal(map[string]string{"inputs": prompt})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/"+modelID, bytes.NewReader(body))
	if err != nil {
		return nil, api.NewTransportError(providerName, err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "image/png")
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	debug.Log("providers", "image request", "provider", providerName, "model", modelID)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, openaicompat.MapNetworkError(providerName, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, api.NewTransportError(providerName, "failed to read image: "+err.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, mapError(resp.StatusCode, data)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if !strings.HasPrefix(mediaType, "image/") {
		return nil, api.NewSchemaMismatch(providerName,
			fmt.Sprintf("expected image bytes, got %q", resp.Header.Get("Content-Type")))
	}
	if len(data) == 0 {
		return nil, api.NewSchemaMismatch(providerName, "empty image body")
	}
	if len(data) > maxImageBytes {
		return nil, api.NewSchemaMismatch(providerName, fmt.Sprintf("image exceeds %d bytes", maxImageBytes))
	}

	return &provider.Image{
		URL: "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data),
	}, nil
}

// mapError reads the {"error": "..."} body the inference API uses.
func mapError(status int, data []byte) *api.Error {
	var body struct {
		Error any `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err != nil || body.Error == nil {
		return api.NewTransportError(providerName, fmt.Sprintf("unexpected response (HTTP %d)", status))
	}

	var msg string
	switch e := body.Error.(type) {
	case string:
		msg = e
	case []any:
		parts := make([]string, 0, len(e))
		for _, p := range e {
			parts = append(parts, fmt.Sprint(p))
		}
		msg = strings.Join(parts, "; ")
	default:
		msg = fmt.Sprint(e)
	}
	policy := strings.Contains(strings.ToLower(msg), "nsfw")
	return api.NewProviderRejection(providerName, status, msg, policy)
}
