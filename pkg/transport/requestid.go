package transport

import (
	"context"

	"github.com/google/uuid"

	"github.com/rhuss/chorus/pkg/engine"
)

// RequestID returns middleware that assigns a unique request ID to each
// turn. If the context already carries one (set by the HTTP adapter from
// the X-Request-ID header), that value is kept.
func RequestID() Middleware {
	return func(next TurnRunner) TurnRunner {
		return TurnRunnerFunc(func(ctx context.Context, conversationID string, u engine.Utterance, sink engine.RenderSink) error {
			if RequestIDFromContext(ctx) == "" {
				ctx = ContextWithRequestID(ctx, uuid.NewString())
			}
			return next.RunTurn(ctx, conversationID, u, sink)
		})
	}
}
