package provider

import (
	"encoding/json"

	"github.com/rhuss/chorus/pkg/api"
)

// ChatRequest is the backend-facing request for one turn.
type ChatRequest struct {
	Model    string
	Messages []api.Message

	// Functions is empty when the turn must not produce tool calls.
	Functions []FunctionDefinition
}

// FunctionDefinition advertises one callable tool to the model.
type FunctionDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ChatEventType classifies a streaming chat event.
type ChatEventType int

const (
	ChatEventTextDelta ChatEventType = iota // Incremental text content
	ChatEventToolCall                       // Complete tool call, no text follows
	ChatEventDone                           // Stream finished
	ChatEventError                          // Stream failed
)

func (t ChatEventType) String() string {
	switch t {
	case ChatEventTextDelta:
		return "text_delta"
	case ChatEventToolCall:
		return "tool_call"
	case ChatEventDone:
		return "done"
	case ChatEventError:
		return "error"
	}
	return "unknown"
}

// ChatEvent is a single streaming event.
type ChatEvent struct {
	Type ChatEventType

	// Delta is the text fragment for ChatEventTextDelta.
	Delta string

	// ToolCall is set for ChatEventToolCall.
	ToolCall *ToolCallSignal

	// FinishReason is the upstream finish_reason on ChatEventDone.
	FinishReason string

	// Err is an *api.Error for ChatEventError.
	Err *api.Error
}

// ToolCallSignal is the model's request to run a tool.
type ToolCallSignal struct {
	ID        string
	Name      string
	Arguments string
}

// Image is one generated image.
type Image struct {
	URL           string `json:"url"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
}
