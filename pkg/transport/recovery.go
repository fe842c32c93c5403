package transport

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rhuss/chorus/pkg/api"
	"github.com/rhuss/chorus/pkg/engine"
)

// Recovery returns middleware that catches panics escaping a turn and
// converts them to transport errors. The server keeps accepting requests.
func Recovery() Middleware {
	return func(next TurnRunner) TurnRunner {
		return TurnRunnerFunc(func(ctx context.Context, conversationID string, u engine.Utterance, sink engine.RenderSink) (retErr error) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("turn panicked", "conversation_id", conversationID, "panic", r)
					retErr = api.NewTransportError("", fmt.Sprintf("internal error: %v", r))
				}
			}()
			return next.RunTurn(ctx, conversationID, u, sink)
		})
	}
}
