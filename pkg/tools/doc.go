// Package tools defines the contract between the turn coordinator and tool
// handlers: the [ToolCall] the model produced, the [Env] a handler runs in,
// and the [Result] it hands back.
//
// Handlers never touch conversation state. They read the snapshot in
// [Env], may publish one or more transient placeholders through
// [Env.Progress], and return a single terminal result. The coordinator
// commits it.
package tools
