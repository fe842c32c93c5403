// Package engine implements the streaming response coordinator. An Engine
// takes a user utterance for a conversation, runs exactly one turn against
// the conversation's chat backend, streams the answer to a RenderSink as
// fragments and commits the outcome to the conversation store. When the
// model asks for a tool, the turn hands over to the tool dispatcher and
// ends with the tool's result.
package engine
