package openaicompat

import "github.com/rhuss/chorus/pkg/provider"

// ChatCompletionRequest is the request body for /chat/completions.
type ChatCompletionRequest struct {
	Model        string                        `json:"model"`
	Messages     []ChatMessage                 `json:"messages"`
	Functions    []provider.FunctionDefinition `json:"functions,omitempty"`
	FunctionCall any                           `json:"function_call,omitempty"`
	Stream       bool                          `json:"stream"`
}

// ChatMessage is one message in Chat Completions form.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// ChatCompletionChunk is a single SSE chunk in a streaming response.
type ChatCompletionChunk struct {
	ID      string            `json:"id"`
	Model   string            `json:"model"`
	Choices []ChatChunkChoice `json:"choices"`

	// Error is set by backends that report failures in-band.
	Error *ChatError `json:"error,omitempty"`
}

// ChatChunkChoice is a streaming choice delta.
type ChatChunkChoice struct {
	Index        int            `json:"index"`
	Delta        ChatChunkDelta `json:"delta"`
	FinishReason *string        `json:"finish_reason"`
}

// ChatChunkDelta holds incremental content in a streaming chunk.
type ChatChunkDelta struct {
	Role         string              `json:"role,omitempty"`
	Content      *string             `json:"content,omitempty"`
	FunctionCall *ChatFunctionCall   `json:"function_call,omitempty"`
	ToolCalls    []ChatChunkToolCall `json:"tool_calls,omitempty"`
}

// ChatFunctionCall holds (partial) function name and arguments.
type ChatFunctionCall struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// ChatChunkToolCall is an incremental tool call in a streaming chunk.
type ChatChunkToolCall struct {
	Index    int              `json:"index"`
	ID       string           `json:"id,omitempty"`
	Type     string           `json:"type,omitempty"`
	Function ChatFunctionCall `json:"function"`
}

// ChatError is the error object returned by Chat Completions backends.
type ChatError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

// ChatErrorResponse wraps ChatError as a response body.
type ChatErrorResponse struct {
	Error *ChatError `json:"error"`
}
