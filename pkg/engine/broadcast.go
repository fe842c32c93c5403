package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/rhuss/chorus/pkg/api"
	"github.com/rhuss/chorus/pkg/debug"
)

// BroadcastResult is the outcome of one conversation's turn in a
// broadcast. Err has the meaning of RunTurn's error.
type BroadcastResult struct {
	ConversationID string
	Err            error
}

// Broadcast submits text to several conversations and runs their turns
// concurrently. Each conversation still admits one turn at a time, so a
// busy conversation reports turn_in_flight without affecting the others.
// Results are in the order of conversationIDs.
func (e *Engine) Broadcast(ctx context.Context, text string, conversationIDs []string, sinks SinkFactory) ([]BroadcastResult, error) {
	if len(conversationIDs) == 0 {
		return nil, api.NewInvalidRequestError("at least one conversation is required")
	}
	if sinks == nil {
		sinks = func(string) RenderSink { return DiscardSink{} }
	}

	results := make([]BroadcastResult, len(conversationIDs))

	var g errgroup.Group
	if e.cfg.BroadcastConcurrency > 0 {
		g.SetLimit(e.cfg.BroadcastConcurrency)
	}
	for i, id := range conversationIDs {
		g.Go(func() error {
			err := e.RunTurn(ctx, id, Utterance{ConversationID: id, Text: text, AllowToolCalls: true}, sinks(id))
			results[i] = BroadcastResult{ConversationID: id, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	debug.Log("engine", "broadcast finished", "conversations", len(conversationIDs))
	return results, nil
}
