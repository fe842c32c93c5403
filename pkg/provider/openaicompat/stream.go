package openaicompat

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	"github.com/rhuss/chorus/pkg/api"
	"github.com/rhuss/chorus/pkg/debug"
	"github.com/rhuss/chorus/pkg/provider"
)

const maxLineSize = 1 << 20

// ToolCallBuffer assembles one function call from incremental chunks.
type ToolCallBuffer struct {
	ID   string
	Name string
	Args strings.Builder
}

// streamParser turns Chat Completions SSE chunks into provider.ChatEvents.
// Once a function call starts, later text is dropped so the tool call is
// the last content the consumer sees.
type streamParser struct {
	providerName string
	ch           chan<- provider.ChatEvent
	call         *ToolCallBuffer
	finishReason string
}

// ParseSSEStream reads Chat Completions SSE chunks from body and sends
// events on ch. It always ends with exactly one ChatEventDone or
// ChatEventError unless ctx is cancelled first. The channel is NOT closed
// by this function.
//
//	data: {"id":"...","choices":[...]}
//
//	data: [DONE]
//
// Malformed chunks are logged and skipped.
func ParseSSEStream(ctx context.Context, providerName string, body io.Reader, ch chan<- provider.ChatEvent) {
	p := &streamParser{providerName: providerName, ch: ch}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		payload, ok := strings.CutPrefix(scanner.Text(), "data:")
		if !ok {
			continue
		}
		payload = strings.TrimSpace(payload)

		if payload == "[DONE]" {
			p.finish(ctx)
			return
		}

		var chunk ChatCompletionChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			slog.Warn("skipping malformed SSE chunk",
				"provider", providerName,
				"error", err.Error(),
				"data", debug.Truncate(payload, 200),
			)
			continue
		}

		if chunk.Error != nil {
			p.send(ctx, provider.ChatEvent{
				Type: provider.ChatEventError,
				Err:  rejection(providerName, 0, chunk.Error),
			})
			return
		}

		if done := p.translate(ctx, &chunk); done {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return
		}
		p.send(ctx, provider.ChatEvent{
			Type: provider.ChatEventError,
			Err:  api.NewTransportError(providerName, "stream read error: "+err.Error()),
		})
		return
	}

	// Some backends close the body without a [DONE] sentinel.
	p.finish(ctx)
}

// translate handles one chunk and reports whether the stream is complete.
func (p *streamParser) translate(ctx context.Context, chunk *ChatCompletionChunk) bool {
	if len(chunk.Choices) == 0 {
		return false
	}
	choice := chunk.Choices[0]
	delta := choice.Delta

	if fc := delta.FunctionCall; fc != nil {
		p.accumulate("", fc.Name, fc.Arguments)
	}
	for _, tc := range delta.ToolCalls {
		// Only the first call is honored; a turn carries at most one.
		if tc.Index != 0 {
			debug.Log("providers", "ignoring parallel tool call", "index", tc.Index, "name", tc.Function.Name)
			continue
		}
		p.accumulate(tc.ID, tc.Function.Name, tc.Function.Arguments)
	}

	if p.call == nil && delta.Content != nil && *delta.Content != "" {
		if !p.send(ctx, provider.ChatEvent{Type: provider.ChatEventTextDelta, Delta: *delta.Content}) {
			return true
		}
	}

	if choice.FinishReason != nil {
		p.finishReason = *choice.FinishReason
		p.finish(ctx)
		return true
	}
	return false
}

func (p *streamParser) accumulate(id, name, args string) {
	if p.call == nil {
		p.call = &ToolCallBuffer{}
	}
	if id != "" {
		p.call.ID = id
	}
	if name != "" {
		p.call.Name += name
	}
	p.call.Args.WriteString(args)
}

// finish flushes a buffered tool call and emits the terminal event.
func (p *streamParser) finish(ctx context.Context) {
	if p.call != nil {
		if p.call.Name == "" {
			p.send(ctx, provider.ChatEvent{
				Type: provider.ChatEventError,
				Err:  api.NewSchemaMismatch(p.providerName, "function call without a name"),
			})
			return
		}
		id := p.call.ID
		if id == "" {
			id = api.NewCallID()
		}
		if !p.send(ctx, provider.ChatEvent{
			Type: provider.ChatEventToolCall,
			ToolCall: &provider.ToolCallSignal{
				ID:        id,
				Name:      p.call.Name,
				Arguments: p.call.Args.String(),
			},
		}) {
			return
		}
		p.call = nil
	}

	if p.finishReason == "content_filter" {
		p.send(ctx, provider.ChatEvent{
			Type: provider.ChatEventError,
			Err:  api.NewProviderRejection(p.providerName, 0, "response stopped by content filter", true),
		})
		return
	}

	p.send(ctx, provider.ChatEvent{Type: provider.ChatEventDone, FinishReason: p.finishReason})
}

func (p *streamParser) send(ctx context.Context, ev provider.ChatEvent) bool {
	select {
	case p.ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
