package backend

import "fmt"

// ProviderKind is the closed set of adapter families a backend can use.
type ProviderKind string

const (
	KindChatOpenAICompatible ProviderKind = "chat-openai-compatible"
	KindImageOpenAI          ProviderKind = "image-openai"
	KindImageHuggingFace     ProviderKind = "image-huggingface"
	KindImageStabilityAI     ProviderKind = "image-stabilityai"
)

// Valid reports whether k is a known provider kind.
func (k ProviderKind) Valid() bool {
	switch k {
	case KindChatOpenAICompatible, KindImageOpenAI, KindImageHuggingFace, KindImageStabilityAI:
		return true
	}
	return false
}

// IsImage reports whether k produces images rather than chat turns.
func (k ProviderKind) IsImage() bool {
	switch k {
	case KindImageOpenAI, KindImageHuggingFace, KindImageStabilityAI:
		return true
	}
	return false
}

// Descriptor describes one selectable backend.
type Descriptor struct {
	ID           string       `json:"id" yaml:"id"`
	DisplayLabel string       `json:"display_label" yaml:"display_label"`
	Kind         ProviderKind `json:"kind" yaml:"kind"`

	// Provider names the credential set and endpoint (openai, groq, ...).
	Provider string `json:"provider" yaml:"provider"`

	SupportsToolCalls bool   `json:"supports_tool_calls" yaml:"supports_tool_calls"`
	ModelID           string `json:"model_id" yaml:"model_id"`
}

func (d Descriptor) validate() error {
	if d.ID == "" {
		return fmt.Errorf("backend id is required")
	}
	if !d.Kind.Valid() {
		return fmt.Errorf("backend %q: unknown provider kind %q", d.ID, d.Kind)
	}
	if d.Provider == "" {
		return fmt.Errorf("backend %q: provider is required", d.ID)
	}
	if d.ModelID == "" {
		return fmt.Errorf("backend %q: model_id is required", d.ID)
	}
	if d.Kind.IsImage() && d.SupportsToolCalls {
		return fmt.Errorf("backend %q: image backends cannot take tool calls", d.ID)
	}
	return nil
}
