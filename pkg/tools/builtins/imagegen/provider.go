// Package imagegen provides the generate_images tool, which asks every
// configured image backend for the same prompt in parallel.
package imagegen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rhuss/chorus/pkg/api"
	"github.com/rhuss/chorus/pkg/backend"
	"github.com/rhuss/chorus/pkg/debug"
	"github.com/rhuss/chorus/pkg/provider"
	"github.com/rhuss/chorus/pkg/tools"
	"github.com/rhuss/chorus/pkg/tools/fanout"
	"github.com/rhuss/chorus/pkg/tools/registry"
)

const toolName = "generate_images"

var toolParametersJSON = json.RawMessage(`{"type":"object","properties":{"prompt":{"type":"string","description":"A description of the image to generate"}},"required":["prompt"]}`)

// Backends lists the image backends to fan out to.
type Backends interface {
	Images() []backend.Descriptor
}

// Adapters resolves a descriptor to its image adapter.
type Adapters interface {
	Image(d backend.Descriptor) (provider.ImageAdapter, error)
}

// Image is one generated image, tagged with the backend that made it.
type Image struct {
	Backend       string `json:"backend"`
	Label         string `json:"label"`
	URL           string `json:"url"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
}

// Failure records a backend that produced no image.
type Failure struct {
	Backend string `json:"backend"`
	Error   string `json:"error"`
}

// Gallery is the payload of the final fragment.
type Gallery struct {
	Prompt   string    `json:"prompt"`
	Images   []Image   `json:"images"`
	Failures []Failure `json:"failures,omitempty"`
}

// Provider implements registry.FunctionProvider for image generation.
type Provider struct {
	backends Backends
	adapters Adapters
	timeout  time.Duration
	images   *prometheus.HistogramVec
}

var _ registry.FunctionProvider = (*Provider)(nil)

// New creates a Provider. timeout bounds each backend separately; zero
// leaves only the dispatcher's bound.
func New(backends Backends, adapters Adapters, timeout time.Duration) *Provider {
	return &Provider{
		backends: backends,
		adapters: adapters,
		timeout:  timeout,
		images: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chorus_imagegen_images_per_call",
				Help:    "Images returned by one generate_images call",
				Buckets: []float64{0, 1, 2, 3, 4, 6, 8},
			},
			[]string{"outcome"},
		),
	}
}

func (p *Provider) Name() string { return "imagegen" }

func (p *Provider) Tools() []provider.FunctionDefinition {
	return []provider.FunctionDefinition{{
		Name:        toolName,
		Description: "Generate images for a prompt with every available image model",
		Parameters:  toolParametersJSON,
	}}
}

// Execute fans the prompt out to every image backend that has an adapter.
// It fails only when no backend returned an image.
func (p *Provider) Execute(ctx context.Context, call tools.ToolCall, env tools.Env) (*tools.Result, error) {
	var args struct {
		Prompt string `json:"prompt"`
	}
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return nil, api.NewSchemaMismatch(toolName, fmt.Sprintf("invalid arguments: %v", err))
	}
	prompt := strings.TrimSpace(args.Prompt)
	if prompt == "" {
		return nil, api.NewSchemaMismatch(toolName, "prompt must not be empty")
	}

	tasks := make([]fanout.Task[Image], 0)
	for _, d := range p.backends.Images() {
		a, err := p.adapters.Image(d)
		if err != nil {
			debug.Log("tools", "skipping image backend without adapter", "backend", d.ID, "error", err)
			continue
		}
		tasks = append(tasks, fanout.Task[Image]{
			Name: d.ID,
			Run: func(ctx context.Context) (Image, error) {
				img, err := a.GenerateImage(ctx, prompt, d.ModelID)
				if err != nil {
					return Image{}, err
				}
				return Image{Backend: d.ID, Label: d.DisplayLabel, URL: img.URL, RevisedPrompt: img.RevisedPrompt}, nil
			},
		})
	}
	if len(tasks) == 0 {
		return nil, api.NewBackendUnsupported(toolName, "no image backends are configured")
	}

	env.Report(ctx, fmt.Sprintf("Generating images with %d models...", len(tasks)), nil)

	report, err := fanout.Run(ctx, fanout.Options{Label: toolName, Timeout: p.timeout}, tasks)

	gallery := Gallery{Prompt: prompt, Images: make([]Image, 0, len(report.Successes))}
	for _, o := range report.Successes {
		gallery.Images = append(gallery.Images, o.Value)
	}
	for _, o := range report.Failures {
		debug.Log("tools", "image backend failed", "backend", o.Name, "error", o.Err)
		gallery.Failures = append(gallery.Failures, Failure{Backend: o.Name, Error: o.Err.UserMessage()})
	}

	if err != nil {
		p.images.WithLabelValues("failed").Observe(0)
		return nil, err
	}
	p.images.WithLabelValues("ok").Observe(float64(len(gallery.Images)))

	return &tools.Result{
		RawContent: summarize(gallery),
		Fragment: api.Fragment{
			Text: fmt.Sprintf("Generated %d of %d images", len(gallery.Images), len(tasks)),
			Data: gallery,
		},
	}, nil
}

func (p *Provider) Collectors() []prometheus.Collector {
	return []prometheus.Collector{p.images}
}

func (p *Provider) Close() error { return nil }

// summarize is the content committed for the model. Image data is left
// out: inline base64 images would swamp the context window.
func summarize(g Gallery) string {
	type entry struct {
		Backend       string `json:"backend"`
		RevisedPrompt string `json:"revised_prompt,omitempty"`
	}
	out := struct {
		Prompt    string    `json:"prompt"`
		Generated []entry   `json:"generated"`
		Failed    []Failure `json:"failed,omitempty"`
	}{Prompt: g.Prompt, Generated: make([]entry, 0, len(g.Images)), Failed: g.Failures}
	for _, img := range g.Images {
		out.Generated = append(out.Generated, entry{Backend: img.Backend, RevisedPrompt: img.RevisedPrompt})
	}
	raw, _ := json.Marshal(out)
	return string(raw)
}
