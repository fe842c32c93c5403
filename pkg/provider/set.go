package provider

import (
	"fmt"

	"github.com/rhuss/chorus/pkg/api"
	"github.com/rhuss/chorus/pkg/backend"
)

type adapterKey struct {
	kind     backend.ProviderKind
	provider string
}

// Set holds the adapters available at runtime, keyed by provider kind and
// provider name. It is built once at startup and read concurrently.
type Set struct {
	chat   map[string]ChatAdapter
	images map[adapterKey]ImageAdapter
}

// NewSet returns an empty adapter set.
func NewSet() *Set {
	return &Set{
		chat:   make(map[string]ChatAdapter),
		images: make(map[adapterKey]ImageAdapter),
	}
}

// RegisterChat adds a chat adapter for the named provider.
func (s *Set) RegisterChat(providerName string, a ChatAdapter) {
	s.chat[providerName] = a
}

// RegisterImage adds an image adapter for an image kind and provider.
func (s *Set) RegisterImage(kind backend.ProviderKind, providerName string, a ImageAdapter) error {
	if !kind.IsImage() {
		return fmt.Errorf("kind %q is not an image kind", kind)
	}
	s.images[adapterKey{kind, providerName}] = a
	return nil
}

// Chat returns the chat adapter for a descriptor.
func (s *Set) Chat(d backend.Descriptor) (ChatAdapter, error) {
	switch d.Kind {
	case backend.KindChatOpenAICompatible:
		if a, ok := s.chat[d.Provider]; ok {
			return a, nil
		}
		return nil, api.NewBackendUnsupported(d.ID,
			fmt.Sprintf("no chat adapter configured for provider %q", d.Provider))
	case backend.KindImageOpenAI, backend.KindImageHuggingFace, backend.KindImageStabilityAI:
		return nil, api.NewBackendUnsupported(d.ID, "image backends cannot hold a conversation")
	default:
		return nil, api.NewBackendUnsupported(d.ID, fmt.Sprintf("unknown provider kind %q", d.Kind))
	}
}

// Image returns the image adapter for a descriptor.
func (s *Set) Image(d backend.Descriptor) (ImageAdapter, error) {
	switch d.Kind {
	case backend.KindImageOpenAI, backend.KindImageHuggingFace, backend.KindImageStabilityAI:
		if a, ok := s.images[adapterKey{d.Kind, d.Provider}]; ok {
			return a, nil
		}
		return nil, api.NewBackendUnsupported(d.ID,
			fmt.Sprintf("no %s adapter configured for provider %q", d.Kind, d.Provider))
	case backend.KindChatOpenAICompatible:
		return nil, api.NewBackendUnsupported(d.ID, "chat backends cannot generate images")
	default:
		return nil, api.NewBackendUnsupported(d.ID, fmt.Sprintf("unknown provider kind %q", d.Kind))
	}
}
