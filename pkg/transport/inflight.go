package transport

import (
	"context"
	"sync"
)

// InFlightRegistry tracks the turns this process is serving so a client
// can cancel one explicitly. Entries are keyed by conversation ID; a
// conversation has at most one open turn.
//
// All methods are safe for concurrent access.
type InFlightRegistry struct {
	mu      sync.Mutex
	entries map[string]*inflightEntry
}

type inflightEntry struct {
	cancel context.CancelFunc
}

// NewInFlightRegistry creates a new empty registry.
func NewInFlightRegistry() *InFlightRegistry {
	return &InFlightRegistry{
		entries: make(map[string]*inflightEntry),
	}
}

// Register records cancel for the conversation's turn. It returns false
// when the conversation already has a registered turn; the existing entry
// is left untouched. The returned release func removes the entry only if
// it is still the one registered here.
func (r *InFlightRegistry) Register(conversationID string, cancel context.CancelFunc) (release func(), ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[conversationID]; exists {
		return func() {}, false
	}
	e := &inflightEntry{cancel: cancel}
	r.entries[conversationID] = e
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.entries[conversationID] == e {
			delete(r.entries, conversationID)
		}
	}, true
}

// Cancel cancels the conversation's in-flight turn. Returns false if no
// turn was registered (already finished or never started here).
func (r *InFlightRegistry) Cancel(conversationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[conversationID]
	if !ok {
		return false
	}
	e.cancel()
	delete(r.entries, conversationID)
	return true
}

// Len returns the number of registered turns.
func (r *InFlightRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
