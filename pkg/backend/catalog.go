package backend

// DefaultID is the backend new conversations start with.
const DefaultID = "gpt-3.5-turbo"

// Catalog returns the built-in backend descriptors.
func Catalog() []Descriptor {
	return []Descriptor{
		{ID: "gpt-3.5-turbo", DisplayLabel: "GPT-3.5 Turbo", Kind: KindChatOpenAICompatible, Provider: "openai", SupportsToolCalls: true, ModelID: "gpt-3.5-turbo"},
		{ID: "gpt-4-turbo", DisplayLabel: "GPT-4 Turbo", Kind: KindChatOpenAICompatible, Provider: "openai", SupportsToolCalls: true, ModelID: "gpt-4-turbo"},
		{ID: "gpt-4o", DisplayLabel: "GPT-4o", Kind: KindChatOpenAICompatible, Provider: "openai", SupportsToolCalls: true, ModelID: "gpt-4o"},
		{ID: "fireworks-llama-3-70b", DisplayLabel: "Llama 3 70B (Fireworks)", Kind: KindChatOpenAICompatible, Provider: "fireworksai", SupportsToolCalls: true, ModelID: "accounts/fireworks/models/llama-v3-70b-instruct"},
		{ID: "groq-llama-3-70b", DisplayLabel: "Llama 3 70B (Groq)", Kind: KindChatOpenAICompatible, Provider: "groq", SupportsToolCalls: true, ModelID: "llama3-70b-8192"},
		{ID: "groq-mixtral-8x7b", DisplayLabel: "Mixtral 8x7B (Groq)", Kind: KindChatOpenAICompatible, Provider: "groq", SupportsToolCalls: true, ModelID: "mixtral-8x7b-32768"},
		{ID: "perplexity-sonar", DisplayLabel: "Perplexity Sonar", Kind: KindChatOpenAICompatible, Provider: "perplexity", SupportsToolCalls: false, ModelID: "llama-3-sonar-large-32k-online"},
		{ID: "dall-e-3", DisplayLabel: "DALL-E 3", Kind: KindImageOpenAI, Provider: "openai", ModelID: "dall-e-3"},
		{ID: "dall-e-2", DisplayLabel: "DALL-E 2", Kind: KindImageOpenAI, Provider: "openai", ModelID: "dall-e-2"},
		{ID: "stable-diffusion-xl", DisplayLabel: "Stable Diffusion XL", Kind: KindImageHuggingFace, Provider: "huggingface", ModelID: "stabilityai/stable-diffusion-xl-base-1.0"},
		{ID: "stable-image-core", DisplayLabel: "Stable Image Core", Kind: KindImageStabilityAI, Provider: "stabilityai", ModelID: "core"},
	}
}

// CatalogPresets returns the built-in named backend groups.
func CatalogPresets() map[string][]string {
	return map[string][]string{
		"default":       {DefaultID},
		"gpt":           {"gpt-3.5-turbo", "gpt-4-turbo", "gpt-4o"},
		"magi":          {"gpt-4o", "groq-llama-3-70b", "fireworks-llama-3-70b"},
		"optpess":       {"gpt-4o", "gpt-4o"},
		"opensource":    {"groq-llama-3-70b", "groq-mixtral-8x7b", "fireworks-llama-3-70b"},
		"generateimage": {"gpt-4o"},
	}
}
