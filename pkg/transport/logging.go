package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/rhuss/chorus/pkg/engine"
)

// Logging returns middleware that emits one structured log entry per
// turn with the conversation, requested backend, request ID and
// duration. Turn outcomes (including backend failures) are logged by
// the engine; this entry only reports whether the turn could be served.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next TurnRunner) TurnRunner {
		return TurnRunnerFunc(func(ctx context.Context, conversationID string, u engine.Utterance, sink engine.RenderSink) error {
			start := time.Now()

			err := next.RunTurn(ctx, conversationID, u, sink)

			attrs := []slog.Attr{
				slog.String("request_id", RequestIDFromContext(ctx)),
				slog.String("conversation_id", conversationID),
				slog.Duration("duration", time.Since(start)),
			}
			if u.BackendID != "" {
				attrs = append(attrs, slog.String("backend", u.BackendID))
			}

			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelWarn, "turn rejected", attrs...)
			} else {
				logger.LogAttrs(ctx, slog.LevelInfo, "turn served", attrs...)
			}
			return err
		})
	}
}
