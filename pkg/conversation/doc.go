// Package conversation is the in-process conversation state store.
//
// A [Conversation] owns an append-only message log, the selected backend
// and at most one in-flight [Turn]. Readers take consistent snapshots with
// [Conversation.Get]; the turn merges partial output with [Turn.Update]
// and closes exactly once with [Turn.Commit]. The [Manager] indexes
// conversations by ID with optional LRU eviction. Nothing is persisted.
package conversation
