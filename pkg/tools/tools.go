package tools

import (
	"context"

	"github.com/rhuss/chorus/pkg/api"
)

// ToolCall is a model's request to invoke a tool.
type ToolCall struct {
	// ID is the call identifier from the model, or a generated one.
	ID string

	// Name is the tool function name.
	Name string

	// Arguments is the JSON-encoded argument object.
	Arguments string
}

// Result is the terminal output of a handler.
type Result struct {
	// ToolName is recorded as the Name of the committed function message.
	ToolName string

	// RawContent is the text committed to the conversation for the model.
	RawContent string

	// Fragment is the final-content fragment shown to the user. The
	// coordinator fills in Kind, TurnID and Seq.
	Fragment api.Fragment
}

// ProgressFunc publishes a transient placeholder for the running tool.
type ProgressFunc func(ctx context.Context, text string, data any)

// Env is everything a handler may see of the turn it runs in.
type Env struct {
	ConversationID string
	TurnID         string

	// Messages is a read-only snapshot of the committed log.
	Messages []api.Message

	// Progress emits a transient-placeholder fragment. Never nil when
	// supplied by the coordinator.
	Progress ProgressFunc
}

// Report calls Progress when it is set.
func (e Env) Report(ctx context.Context, text string, data any) {
	if e.Progress != nil {
		e.Progress(ctx, text, data)
	}
}
