package api

import "fmt"

// TurnState is the coordinator state of a single turn.
type TurnState string

const (
	TurnIdle                    TurnState = "idle"
	TurnAwaitingBackendResponse TurnState = "awaiting_backend_response"
	TurnTextStreaming           TurnState = "text_streaming"
	TurnToolExecuting           TurnState = "tool_executing"
	TurnDone                    TurnState = "turn_done"
)

var turnTransitions = map[TurnState][]TurnState{
	TurnIdle:                    {TurnAwaitingBackendResponse, TurnDone},
	TurnAwaitingBackendResponse: {TurnTextStreaming, TurnToolExecuting, TurnDone},
	TurnTextStreaming:           {TurnTextStreaming, TurnDone},
	TurnToolExecuting:           {TurnDone},
	TurnDone:                    {}, // terminal
}

// ValidateTurnTransition checks whether a turn may move from one state to
// another. TurnDone is terminal. Every non-terminal state may move to
// TurnDone so failures always end the turn.
func ValidateTurnTransition(from, to TurnState) *Error {
	allowed, exists := turnTransitions[from]
	if !exists {
		return NewInvalidRequestError(fmt.Sprintf("invalid transition from %s to %s", from, to))
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return NewInvalidRequestError(fmt.Sprintf("invalid transition from %s to %s", from, to))
}
