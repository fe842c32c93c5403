package transport

import (
	"context"

	"github.com/rhuss/chorus/pkg/backend"
	"github.com/rhuss/chorus/pkg/conversation"
	"github.com/rhuss/chorus/pkg/engine"
)

// TurnRunner runs one turn of a conversation. Fragments go to sink; the
// returned error is only set when the turn could not start or the sink
// failed.
type TurnRunner interface {
	RunTurn(ctx context.Context, conversationID string, u engine.Utterance, sink engine.RenderSink) error
}

// TurnRunnerFunc is an adapter that allows using an ordinary function
// as a TurnRunner.
type TurnRunnerFunc func(ctx context.Context, conversationID string, u engine.Utterance, sink engine.RenderSink) error

// RunTurn calls f(ctx, conversationID, u, sink).
func (f TurnRunnerFunc) RunTurn(ctx context.Context, conversationID string, u engine.Utterance, sink engine.RenderSink) error {
	return f(ctx, conversationID, u, sink)
}

// Orchestrator is everything an outer surface needs from the engine.
type Orchestrator interface {
	TurnRunner

	Backends() *backend.Registry
	Conversations() *conversation.Manager

	CreateConversation(backendID string) (*conversation.Conversation, error)
	CreateFromPreset(name string) ([]*conversation.Conversation, error)
	Snapshot(conversationID string) (conversation.Snapshot, error)
	SelectBackend(conversationID, backendID string) error
	Reset(conversationID string) error
	DeleteConversation(conversationID string) error

	// Broadcast runs one turn per conversation concurrently; sinks
	// supplies the sink of each conversation.
	Broadcast(ctx context.Context, text string, conversationIDs []string, sinks engine.SinkFactory) ([]engine.BroadcastResult, error)
}

var _ Orchestrator = (*engine.Engine)(nil)
