package engine

import "time"

// DefaultSystemPrompt opens every chat request.
const DefaultSystemPrompt = "You are a helpful assistant"

// Config holds configuration for the engine.
type Config struct {
	// SystemPrompt is sent as the first message of every chat request.
	// Empty selects DefaultSystemPrompt.
	SystemPrompt string

	// TurnTimeout bounds a whole turn, stream and tool included. Zero or
	// negative means 5 minutes.
	TurnTimeout time.Duration

	// BroadcastConcurrency caps turns run at once by Broadcast. Zero means
	// no limit.
	BroadcastConcurrency int
}

func (c Config) systemPrompt() string {
	if c.SystemPrompt == "" {
		return DefaultSystemPrompt
	}
	return c.SystemPrompt
}

func (c Config) turnTimeout() time.Duration {
	if c.TurnTimeout <= 0 {
		return 5 * time.Minute
	}
	return c.TurnTimeout
}
