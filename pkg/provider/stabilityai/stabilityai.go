// Package stabilityai is the image adapter for the Stability AI v2beta
// stable-image API. Requests are multipart forms; the adapter asks for a
// JSON reply so the image arrives base64 encoded with its finish reason.
package stabilityai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
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
	providerName   = "stabilityai"
	DefaultBaseURL = "https://api.stability.ai/v2beta/stable-image/generate"
)

type generationResponse struct {
	Image        string `json:"image"`
	FinishReason string `json:"finish_reason"`
	Seed         int64  `json:"seed"`
}

type errorResponse struct {
	Name   string   `json:"name"`
	Errors []string `json:"errors"`
}

// Adapter posts to {baseURL}/{modelID}, where modelID is one of core,
// ultra or sd3.
type Adapter struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	outputFormat string
}

var _ provider.ImageAdapter = (*Adapter)(nil)

// New creates an Adapter. An empty baseURL selects the public API.
func New(baseURL, apiKey string, timeout time.Duration) *Adapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Adapter{
		httpClient:   &http.Client{Timeout: timeout},
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		outputFormat: "png",
	}
}

func (a *Adapter) Name() string { return providerName }

// GenerateImage returns the generated image as a data: URL.
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
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	_ = form.WriteField("prompt", prompt)
	_ = form.WriteField("output_format", a.outputFormat)
	if err := form.Close(); err != nil {
		return nil, api.NewSchemaMismatch(providerName, "failed to build form: "+err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/"+modelID, &buf)
	if err != nil {
		return nil, api.NewTransportError(providerName, err.Error())
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	debug.Log("providers", "image request", "provider", providerName, "model", modelID)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, openaicompat.MapNetworkError(providerName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, mapError(resp)
	}

	var gen generationResponse
	if err := json.NewDecoder(resp.Body).Decode(&gen); err != nil {
		return nil, api.NewSchemaMismatch(providerName, "failed to parse image response: "+err.Error())
	}

	switch gen.FinishReason {
	case "SUCCESS", "":
	case "CONTENT_FILTERED":
		return nil, api.NewProviderRejection(providerName, resp.StatusCode, "image was filtered by the content moderation system", true)
	default:
		return nil, api.NewSchemaMismatch(providerName, fmt.Sprintf("unexpected finish_reason %q", gen.FinishReason))
	}
	if gen.Image == "" {
		return nil, api.NewSchemaMismatch(providerName, "image response has no image")
	}

	return &provider.Image{URL: "data:image/" + a.outputFormat + ";base64," + gen.Image}, nil
}

func mapError(resp *http.Response) *api.Error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
	var e errorResponse
	if err := json.Unmarshal(data, &e); err != nil || (e.Name == "" && len(e.Errors) == 0) {
		return api.NewTransportError(providerName, fmt.Sprintf("unexpected response (HTTP %d)", resp.StatusCode))
	}
	msg := strings.Join(e.Errors, "; ")
	if msg == "" {
		msg = e.Name
	}
	return api.NewProviderRejection(providerName, resp.StatusCode, msg, e.Name == "content_moderation")
}
