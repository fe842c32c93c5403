package backend

import (
	"errors"
	"strings"
	"testing"

	"github.com/rhuss/chorus/pkg/api"
)

func newCatalogRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := New(Catalog(), DefaultID, WithPresets(CatalogPresets()))
	if err != nil {
		t.Fatalf("New(Catalog()) error: %v", err)
	}
	return r
}

func TestCatalogBuilds(t *testing.T) {
	r := newCatalogRegistry(t)
	if got := r.Default().ID; got != DefaultID {
		t.Errorf("Default().ID = %q, want %q", got, DefaultID)
	}
	if len(r.List()) != len(Catalog()) {
		t.Errorf("List() len = %d, want %d", len(r.List()), len(Catalog()))
	}
}

func TestResolve(t *testing.T) {
	r := newCatalogRegistry(t)

	d, err := r.Resolve("groq-mixtral-8x7b")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if d.Provider != "groq" || d.Kind != KindChatOpenAICompatible {
		t.Errorf("unexpected descriptor %+v", d)
	}

	_, err = r.Resolve("gpt-4-trbo")
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Kind != api.ErrorKindNotFound {
		t.Fatalf("Resolve(unknown) error = %v, want not_found", err)
	}
	if !strings.Contains(apiErr.Message, `did you mean "gpt-4-turbo"`) {
		t.Errorf("message %q should suggest gpt-4-turbo", apiErr.Message)
	}

	_, err = r.Resolve("zzzzzzzzzzzzzzz")
	if !errors.As(err, &apiErr) || strings.Contains(apiErr.Message, "did you mean") {
		t.Errorf("distant IDs should not get a suggestion: %v", err)
	}
}

func TestListByKind(t *testing.T) {
	r := newCatalogRegistry(t)

	images := r.Images()
	if len(images) != 4 {
		t.Fatalf("Images() len = %d, want 4", len(images))
	}
	for _, d := range images {
		if !d.Kind.IsImage() {
			t.Errorf("%s is not an image backend", d.ID)
		}
	}

	hf := r.ListByKind(KindImageHuggingFace)
	if len(hf) != 1 || hf[0].ID != "stable-diffusion-xl" {
		t.Errorf("ListByKind(huggingface) = %+v", hf)
	}
}

func TestNewRejectsMisconfiguration(t *testing.T) {
	chat := Descriptor{ID: "a", Kind: KindChatOpenAICompatible, Provider: "openai", ModelID: "m"}

	tests := []struct {
		name      string
		descs     []Descriptor
		defaultID string
		opts      []Option
		wantMsg   string
	}{
		{
			name:    "unknown kind",
			descs:   []Descriptor{chat, {ID: "b", Kind: "chat-anthropic", Provider: "x", ModelID: "m"}},
			wantMsg: "unknown provider kind",
		},
		{
			name:    "duplicate id",
			descs:   []Descriptor{chat, chat},
			wantMsg: "duplicate backend id",
		},
		{
			name:      "unknown default",
			descs:     []Descriptor{chat},
			defaultID: "nope",
			wantMsg:   "default backend",
		},
		{
			name:      "image default",
			descs:     []Descriptor{chat, {ID: "img", Kind: KindImageOpenAI, Provider: "openai", ModelID: "dall-e-3"}},
			defaultID: "img",
			wantMsg:   "must be a chat backend",
		},
		{
			name:    "preset references unknown id",
			descs:   []Descriptor{chat},
			opts:    []Option{WithPresets(map[string][]string{"p": {"a", "ghost"}})},
			wantMsg: `unknown backend "ghost"`,
		},
		{
			name:    "missing model",
			descs:   []Descriptor{{ID: "a", Kind: KindChatOpenAICompatible, Provider: "openai"}},
			wantMsg: "model_id is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.descs, tt.defaultID, tt.opts...)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q should contain %q", err, tt.wantMsg)
			}
		})
	}
}

func TestPreset(t *testing.T) {
	r := newCatalogRegistry(t)

	ids, err := r.Preset("gpt")
	if err != nil {
		t.Fatalf("Preset(gpt): %v", err)
	}
	if len(ids) != 3 || ids[0] != "gpt-3.5-turbo" {
		t.Errorf("Preset(gpt) = %v", ids)
	}

	// Mutating the result must not leak into the registry.
	ids[0] = "mutated"
	again, _ := r.Preset("gpt")
	if again[0] != "gpt-3.5-turbo" {
		t.Error("Preset returned shared slice")
	}

	random, err := r.Preset(PresetRandom)
	if err != nil {
		t.Fatalf("Preset(random): %v", err)
	}
	if len(random) != 3 {
		t.Errorf("Preset(random) len = %d, want 3", len(random))
	}
	seen := map[string]bool{}
	for _, id := range random {
		d, err := r.Resolve(id)
		if err != nil || d.Kind != KindChatOpenAICompatible {
			t.Errorf("random preset picked %q (%v)", id, err)
		}
		if seen[id] {
			t.Errorf("random preset picked %q twice", id)
		}
		seen[id] = true
	}

	_, err = r.Preset("magii")
	if err == nil || !strings.Contains(err.Error(), `did you mean "magi"`) {
		t.Errorf("Preset(magii) error = %v", err)
	}
}
