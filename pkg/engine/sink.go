package engine

import (
	"context"

	"github.com/rhuss/chorus/pkg/api"
)

// Utterance is one user input submitted to a conversation.
type Utterance struct {
	ConversationID string

	Text string

	// BackendID, when set, switches the conversation to that backend
	// before the turn starts.
	BackendID string

	// AllowToolCalls advertises the registered tools to the backend. It
	// has no effect on backends that do not support tool calls.
	AllowToolCalls bool
}

// RenderSink receives the fragments of a turn in order. Finish is called
// exactly once with the terminal fragment (final-content or
// error-message), after the outcome has been committed.
type RenderSink interface {
	Emit(ctx context.Context, f api.Fragment) error
	Finish(ctx context.Context, turnID string, f api.Fragment) error
}

// SinkFactory returns the sink for one conversation of a broadcast.
type SinkFactory func(conversationID string) RenderSink

// DiscardSink drops every fragment.
type DiscardSink struct{}

func (DiscardSink) Emit(context.Context, api.Fragment) error           { return nil }
func (DiscardSink) Finish(context.Context, string, api.Fragment) error { return nil }
