// Package openaicompat is the chat adapter for OpenAI-compatible Chat
// Completions endpoints. One Client serves OpenAI, Fireworks, Groq and
// Perplexity; they differ only in base URL and API key.
//
// The adapter speaks the legacy "functions" form of tool calling because
// committed tool results are recorded as role "function" messages, which
// only that form accepts without a preceding assistant tool_calls entry.
// Streams carrying "tool_calls" deltas are understood as well.
package openaicompat
