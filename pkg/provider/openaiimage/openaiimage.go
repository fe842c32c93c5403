// Package openaiimage is the image adapter for the OpenAI Images API
// (DALL-E 2 and DALL-E 3).
package openaiimage

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
	"github.com/rhuss/chorus/pkg/provider/openaicompat"
)

const providerName = "openai"

type generationRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format,omitempty"`
}

type generationResponse struct {
	Data []struct {
		URL           string `json:"url"`
		B64JSON       string `json:"b64_json"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
}

// Adapter generates images through /images/generations.
type Adapter struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

var _ provider.ImageAdapter = (*Adapter)(nil)

// New creates an Adapter. An empty baseURL selects the public OpenAI API.
func New(baseURL, apiKey string, timeout time.Duration) *Adapter {
	if baseURL == "" {
		baseURL = openaicompat.OpenAIBaseURL
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

// sizeFor returns the image size each model accepts; dall-e-3 rejects the
// small sizes and dall-e-2 is cheapest at 512.
func sizeFor(modelID string) string {
	if modelID == "dall-e-2" {
		return "512x512"
	}
	return "1024x1024"
}

// GenerateImage requests a single image for prompt.
func (a *Adapter) GenerateImage(ctx context.Context, prompt, modelID string) (*provider.Image, error) {
	start := time.Now()
	img, err := a.generate(ctx, prompt, modelID)
	status := "ok"
	if err != nil {
		status = string(err.Kind)
	}
	observability.ObserveProvider(providerName, modelID, status, start)
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (a *Adapter) generate(ctx context.Context, prompt, modelID string) (*provider.Image, *api.Error) {
	body, err := json.Marshal(generationRequest{
		Model:  modelID,
		Prompt: prompt,
		N:      1, // dall-e-3 only supports n=1
		Size:   sizeFor(modelID),
	})
	if err != nil {
		return nil, api.NewSchemaMismatch(providerName, fmt.Sprintf("failed to marshal request: %s", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/images/generations", bytes.NewReader(body))
	if err != nil {
		return nil, api.NewTransportError(providerName, err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
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
		return nil, openaicompat.MapHTTPError(providerName, resp)
	}

	var gen generationResponse
	if err := json.NewDecoder(resp.Body).Decode(&gen); err != nil {
		return nil, api.NewSchemaMismatch(providerName, "failed to parse image response: "+err.Error())
	}
	if len(gen.Data) == 0 {
		return nil, api.NewSchemaMismatch(providerName, "image response contained no data")
	}

	d := gen.Data[0]
	img := &provider.Image{RevisedPrompt: d.RevisedPrompt}
	switch {
	case d.URL != "":
		img.URL = d.URL
	case d.B64JSON != "":
		img.URL = "data:image/png;base64," + d.B64JSON
	default:
		return nil, api.NewSchemaMismatch(providerName, "image response has neither url nor b64_json")
	}
	return img, nil
}
