package provider

import (
	"context"
)

// ChatAdapter streams one chat turn from an OpenAI-compatible backend.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type ChatAdapter interface {
	// Name returns the provider identifier (e.g., "openai", "groq").
	Name() string

	// StreamChat starts a streaming completion. The returned channel
	// delivers text deltas in emission order, at most one tool call, and
	// exactly one terminal ChatEventDone or ChatEventError before it is
	// closed. Failures before the stream starts are returned directly.
	StreamChat(ctx context.Context, req *ChatRequest) (<-chan ChatEvent, error)
}

// ImageAdapter produces a single image for a prompt.
type ImageAdapter interface {
	// Name returns the provider identifier.
	Name() string

	// GenerateImage returns one image. The URL may be a data: URL when the
	// upstream answers with inline bytes.
	GenerateImage(ctx context.Context, prompt, modelID string) (*Image, error)
}
