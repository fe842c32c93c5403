package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rhuss/chorus/pkg/api"
	"github.com/rhuss/chorus/pkg/conversation"
	"github.com/rhuss/chorus/pkg/debug"
	"github.com/rhuss/chorus/pkg/observability"
	"github.com/rhuss/chorus/pkg/provider"
	"github.com/rhuss/chorus/pkg/tools"
)

// RunTurn runs one turn of a conversation and blocks until it is done.
//
// The returned error reports problems that prevented the turn from
// starting (unknown conversation, a turn already in flight, an invalid
// utterance or backend) and render sink failures. Backend and tool
// failures do not surface here: they end the turn with a committed
// message and an error-message fragment.
func (e *Engine) RunTurn(ctx context.Context, conversationID string, u Utterance, sink RenderSink) error {
	conv, err := e.convs.Get(conversationID)
	if err != nil {
		return err
	}
	var backendID string
	if u.BackendID != "" {
		d, err := e.chatBackend(u.BackendID)
		if err != nil {
			return err
		}
		backendID = d.ID
	}

	turn, err := conv.BeginOn(backendID, api.Message{Role: api.RoleUser, Content: u.Text})
	if err != nil {
		return err
	}

	r := &turnRun{
		e:       e,
		conv:    conv,
		turn:    turn,
		sink:    sink,
		sinkCtx: ctx,
		state:   api.TurnIdle,
	}
	defer r.guard()

	turnCtx, cancel := context.WithTimeout(ctx, e.cfg.turnTimeout())
	defer cancel()

	r.run(turnCtx, u.AllowToolCalls)
	return r.sinkErr
}

// turnRun is the coordinator state of one turn.
type turnRun struct {
	e       *Engine
	conv    *conversation.Conversation
	turn    *conversation.Turn
	sink    RenderSink
	sinkCtx context.Context

	// provider names the upstream for error attribution.
	provider string

	mu       sync.Mutex
	state    api.TurnState
	seq      int
	finished bool
	sinkErr  error
}

func (r *turnRun) run(ctx context.Context, allowTools bool) {
	d, err := r.e.backends.Resolve(r.turn.Backend())
	if err != nil {
		r.failChat(err)
		return
	}
	r.provider = d.Provider

	adapter, err := r.e.adapters.Chat(d)
	if err != nil {
		r.failChat(err)
		return
	}

	var defs []provider.FunctionDefinition
	if allowTools && r.e.tools != nil {
		defs = r.e.tools.Definitions()
	}
	snap := r.conv.Get()
	req := buildChatRequest(r.e.cfg.systemPrompt(), d, snap.Messages, defs)

	r.to(api.TurnAwaitingBackendResponse)
	debug.Log("engine", "turn started",
		"conversation", r.conv.ID(), "turn", r.turn.ID(), "backend", d.ID,
		"messages", len(req.Messages), "functions", len(req.Functions))

	events, err := adapter.StreamChat(ctx, req)
	if err != nil {
		r.failChat(err)
		return
	}

	var text strings.Builder
	for {
		select {
		case <-ctx.Done():
			r.failChat(ctx.Err())
			return

		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					r.failChat(ctx.Err())
				} else {
					r.failChat(api.NewTransportError(d.Provider, "stream ended without a result"))
				}
				return
			}

			switch ev.Type {
			case provider.ChatEventTextDelta:
				if ev.Delta == "" {
					continue
				}
				r.to(api.TurnTextStreaming)
				text.WriteString(ev.Delta)
				if err := r.turn.Update(conversation.Patch{Role: api.RoleAssistant, Delta: ev.Delta}); err != nil {
					slog.Error("updating turn", "turn", r.turn.ID(), "error", err)
				}
				r.emit(api.Fragment{Kind: api.FragmentIncrementalText, Text: ev.Delta})

			case provider.ChatEventToolCall:
				if ev.ToolCall == nil {
					continue
				}
				if r.current() == api.TurnTextStreaming {
					slog.Warn("ignoring tool call after streamed text",
						"conversation", r.conv.ID(), "turn", r.turn.ID(), "tool", ev.ToolCall.Name)
					continue
				}
				r.runTool(ctx, snap.Messages, ev.ToolCall)
				return

			case provider.ChatEventDone:
				r.finishText(text.String())
				return

			case provider.ChatEventError:
				if ev.Err == nil {
					r.failChat(api.NewTransportError(d.Provider, "stream failed"))
				} else {
					r.failChat(ev.Err)
				}
				return
			}
		}
	}
}

func (r *turnRun) runTool(ctx context.Context, history []api.Message, sig *provider.ToolCallSignal) {
	r.to(api.TurnToolExecuting)

	call := tools.ToolCall{ID: sig.ID, Name: sig.Name, Arguments: sig.Arguments}
	if call.ID == "" {
		call.ID = api.NewCallID()
	}
	env := tools.Env{
		ConversationID: r.conv.ID(),
		TurnID:         r.turn.ID(),
		Messages:       history,
		Progress: func(_ context.Context, text string, data any) {
			r.emit(api.Fragment{Kind: api.FragmentPlaceholder, Tool: call.Name, Text: text, Data: data})
		},
	}

	if r.e.tools == nil {
		r.failTool(call.Name, api.NewToolNotFound(call.Name, "no tools are registered"))
		return
	}
	res, err := r.e.tools.Dispatch(ctx, call, env)
	if err != nil {
		r.failTool(call.Name, err)
		return
	}

	name := res.ToolName
	if name == "" {
		name = call.Name
	}
	r.commit(api.Message{Role: api.RoleFunction, Name: name, Content: res.RawContent})

	f := res.Fragment
	f.Kind = api.FragmentFinalContent
	f.Tool = name
	r.finish(f, "tool")
}

func (r *turnRun) finishText(text string) {
	r.commit(api.Message{Role: api.RoleAssistant, Content: text})
	r.finish(api.Fragment{Kind: api.FragmentFinalContent, Text: text}, "text")
}

// failChat ends the turn after a backend failure. The normalized error
// text is committed as the assistant's answer.
func (r *turnRun) failChat(err error) {
	apiErr := api.Normalize(r.provider, err)
	slog.Warn("turn failed",
		"conversation", r.conv.ID(), "turn", r.turn.ID(), "backend", r.turn.Backend(),
		"kind", apiErr.Kind, "error", apiErr.Message)

	msg := apiErr.UserMessage()
	r.commit(api.Message{Role: api.RoleAssistant, Content: msg})
	r.finish(api.Fragment{Kind: api.FragmentErrorMessage, Text: msg, PolicyViolation: apiErr.PolicyViolation}, "error")
}

// failTool ends the turn after a tool failure. The error is recorded as
// the result of the invoking tool.
func (r *turnRun) failTool(name string, err error) {
	apiErr := api.Normalize(name, err)
	slog.Warn("tool failed",
		"conversation", r.conv.ID(), "turn", r.turn.ID(), "tool", name,
		"kind", apiErr.Kind, "error", apiErr.Message)

	msg := apiErr.UserMessage()
	r.commit(api.Message{Role: api.RoleFunction, Name: name, Content: msg})
	r.finish(api.Fragment{Kind: api.FragmentErrorMessage, Tool: name, Text: msg, PolicyViolation: apiErr.PolicyViolation}, "error")
}

func (r *turnRun) commit(m api.Message) {
	if err := r.turn.Commit(m); err != nil {
		slog.Error("committing turn", "turn", r.turn.ID(), "error", err)
	}
}

// finish delivers the terminal fragment. The outcome is already committed,
// so a reader woken by the fragment sees the final message.
func (r *turnRun) finish(f api.Fragment, outcome string) {
	r.to(api.TurnDone)

	r.mu.Lock()
	r.finished = true
	f.TurnID = r.turn.ID()
	f.Seq = r.seq
	r.seq++
	r.mu.Unlock()

	backendID := r.turn.Backend()
	observability.TurnsTotal.WithLabelValues(backendID, outcome).Inc()
	observability.TurnDuration.WithLabelValues(backendID).Observe(time.Since(r.turn.Started()).Seconds())
	observability.FragmentsTotal.WithLabelValues(string(f.Kind)).Inc()

	if err := r.sink.Finish(r.sinkCtx, f.TurnID, f); err != nil {
		r.recordSinkErr(err)
	}
}

// emit sends a non-terminal fragment. After the first sink error, and
// after the terminal fragment, fragments are dropped.
func (r *turnRun) emit(f api.Fragment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished || r.sinkErr != nil {
		return
	}
	f.TurnID = r.turn.ID()
	f.Seq = r.seq
	r.seq++
	observability.FragmentsTotal.WithLabelValues(string(f.Kind)).Inc()

	if err := r.sink.Emit(r.sinkCtx, f); err != nil {
		r.sinkErr = err
		debug.Log("engine", "render sink failed", "turn", f.TurnID, "error", err)
	}
}

func (r *turnRun) recordSinkErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sinkErr == nil {
		r.sinkErr = err
	}
}

func (r *turnRun) current() api.TurnState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *turnRun) to(next api.TurnState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := api.ValidateTurnTransition(r.state, next); err != nil {
		slog.Error("invalid turn transition", "turn", r.turn.ID(), "error", err.Message)
		return
	}
	if r.state != next {
		debug.Trace("engine", "turn state", "turn", r.turn.ID(), "from", r.state, "to", next)
	}
	r.state = next
}

// guard closes the turn if it is still open when RunTurn unwinds, which
// only happens on a panic. The panic is committed as a transport error and
// reported through a terminal fragment before it is re-raised.
func (r *turnRun) guard() {
	p := recover()
	if p == nil {
		if !r.turn.Committed() {
			slog.Error("turn ended without a commit", "turn", r.turn.ID())
			r.commit(api.Message{Role: api.RoleAssistant, Content: "The turn failed unexpectedly."})
		}
		return
	}
	apiErr := api.NewTransportError(r.provider, fmt.Sprintf("internal error: %v", p))
	msg := apiErr.UserMessage()
	if !r.turn.Committed() {
		slog.Error("turn ended without a commit", "turn", r.turn.ID(), "panic", p)
		r.commit(api.Message{Role: api.RoleAssistant, Content: msg})
	}

	r.mu.Lock()
	finished := r.finished
	r.mu.Unlock()
	if !finished {
		func() {
			defer func() {
				if p2 := recover(); p2 != nil {
					slog.Error("render sink panicked on the terminal fragment", "turn", r.turn.ID(), "panic", p2)
				}
			}()
			r.finish(api.Fragment{Kind: api.FragmentErrorMessage, Text: msg}, "error")
		}()
	}
	panic(p)
}
