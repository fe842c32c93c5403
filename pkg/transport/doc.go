// Package transport defines the contracts and middleware between the
// orchestrator engine and the outer surfaces that render its fragments.
//
// # Contracts
//
// TurnRunner runs one conversational turn and delivers the fragments to a
// RenderSink. Orchestrator adds the conversation management operations
// (create, snapshot, reset, backend selection, broadcast) served next to
// turns. *engine.Engine implements both.
//
// # Sinks
//
// CollectingSink buffers the fragments of a turn for callers that want a
// single response instead of a stream. Streaming sinks live with the
// protocol that carries them (see pkg/transport/http for SSE).
//
// # Middleware
//
// The middleware chain wraps a TurnRunner with cross-cutting concerns.
// Built-in middleware provides panic recovery, request ID assignment
// (X-Request-ID), and structured logging via log/slog.
package transport
