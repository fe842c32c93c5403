package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/rhuss/chorus/pkg/api"
	"github.com/rhuss/chorus/pkg/backend"
)

type stubChat struct{ name string }

func (s stubChat) Name() string { return s.name }
func (s stubChat) StreamChat(context.Context, *ChatRequest) (<-chan ChatEvent, error) {
	return nil, nil
}

type stubImage struct{ name string }

func (s stubImage) Name() string { return s.name }
func (s stubImage) GenerateImage(context.Context, string, string) (*Image, error) {
	return &Image{URL: "https://img/" + s.name}, nil
}

func TestSetResolution(t *testing.T) {
	s := NewSet()
	s.RegisterChat("openai", stubChat{"openai"})
	if err := s.RegisterImage(backend.KindImageOpenAI, "openai", stubImage{"dalle"}); err != nil {
		t.Fatalf("RegisterImage: %v", err)
	}

	chat := backend.Descriptor{ID: "gpt-4o", Kind: backend.KindChatOpenAICompatible, Provider: "openai"}
	groq := backend.Descriptor{ID: "groq-llama", Kind: backend.KindChatOpenAICompatible, Provider: "groq"}
	dalle := backend.Descriptor{ID: "dall-e-3", Kind: backend.KindImageOpenAI, Provider: "openai"}
	hf := backend.Descriptor{ID: "sdxl", Kind: backend.KindImageHuggingFace, Provider: "huggingface"}
	bogus := backend.Descriptor{ID: "bogus", Kind: "chat-anthropic", Provider: "anthropic"}

	if a, err := s.Chat(chat); err != nil || a.Name() != "openai" {
		t.Errorf("Chat(gpt-4o) = %v, %v", a, err)
	}
	if a, err := s.Image(dalle); err != nil || a.Name() != "dalle" {
		t.Errorf("Image(dall-e-3) = %v, %v", a, err)
	}

	unsupported := []struct {
		name string
		call func() error
	}{
		{"chat provider without adapter", func() error { _, err := s.Chat(groq); return err }},
		{"image kind as chat", func() error { _, err := s.Chat(dalle); return err }},
		{"unknown kind as chat", func() error { _, err := s.Chat(bogus); return err }},
		{"image without adapter", func() error { _, err := s.Image(hf); return err }},
		{"chat kind as image", func() error { _, err := s.Image(chat); return err }},
		{"unknown kind as image", func() error { _, err := s.Image(bogus); return err }},
	}
	for _, tt := range unsupported {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if !errors.Is(err, &api.Error{Kind: api.ErrorKindBackendUnsupported}) {
				t.Errorf("error = %v, want backend_unsupported", err)
			}
		})
	}
}

func TestRegisterImageRejectsChatKind(t *testing.T) {
	s := NewSet()
	if err := s.RegisterImage(backend.KindChatOpenAICompatible, "openai", stubImage{}); err == nil {
		t.Error("expected error registering an image adapter under a chat kind")
	}
}
