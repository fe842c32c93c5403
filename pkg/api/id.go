package api

import (
	"strings"

	"github.com/google/uuid"
)

const (
	conversationIDPrefix = "conv_"
	turnIDPrefix         = "turn_"
	callIDPrefix         = "call_"
)

// NewConversationID returns a new conversation ID ("conv_" + 32 hex chars).
func NewConversationID() string {
	return conversationIDPrefix + compactUUID()
}

// NewTurnID returns a new turn ID ("turn_" + 32 hex chars).
func NewTurnID() string {
	return turnIDPrefix + compactUUID()
}

// NewCallID returns a tool call ID for backends that do not supply one.
func NewCallID() string {
	return callIDPrefix + compactUUID()
}

// ValidateConversationID checks whether id has the conversation ID shape.
func ValidateConversationID(id string) bool {
	return validPrefixed(id, conversationIDPrefix)
}

// ValidateTurnID checks whether id has the turn ID shape.
func ValidateTurnID(id string) bool {
	return validPrefixed(id, turnIDPrefix)
}

func compactUUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func validPrefixed(id, prefix string) bool {
	rest, ok := strings.CutPrefix(id, prefix)
	if !ok || len(rest) != 32 {
		return false
	}
	_, err := uuid.Parse(rest)
	return err == nil
}
