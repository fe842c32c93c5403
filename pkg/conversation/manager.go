package conversation

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/rhuss/chorus/pkg/api"
	"github.com/rhuss/chorus/pkg/observability"
)

type entry struct {
	conv    *Conversation
	lruElem *list.Element
}

// Manager holds conversations by ID with optional LRU eviction.
type Manager struct {
	mu      sync.Mutex
	entries map[string]*entry
	lruList *list.List // front = most recently used
	maxSize int        // 0 = unlimited
}

// NewManager creates a Manager. When maxSize > 0 the least recently used
// idle conversation is evicted to make room for a new one.
func NewManager(maxSize int) *Manager {
	return &Manager{
		entries: make(map[string]*entry),
		lruList: list.New(),
		maxSize: maxSize,
	}
}

// Create adds an empty conversation that uses backendID.
func (m *Manager) Create(backendID string) *Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.maxSize > 0 && len(m.entries) >= m.maxSize {
		m.evictOldestIdle()
	}

	c := New(api.NewConversationID(), backendID)
	m.entries[c.id] = &entry{conv: c, lruElem: m.lruList.PushFront(c.id)}
	observability.ConversationsActive.Set(float64(len(m.entries)))
	return c
}

// Get returns the conversation and marks it recently used.
func (m *Manager) Get(id string) (*Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return nil, api.NewNotFoundError(fmt.Sprintf("conversation %q not found", id))
	}
	m.lruList.MoveToFront(e.lruElem)
	return e.conv, nil
}

// Delete removes a conversation. An in-flight turn still commits into the
// detached conversation, which is then unreachable.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return api.NewNotFoundError(fmt.Sprintf("conversation %q not found", id))
	}
	m.remove(id, e)
	return nil
}

// List returns snapshots, most recently used first.
func (m *Manager) List() []Snapshot {
	m.mu.Lock()
	convs := make([]*Conversation, 0, len(m.entries))
	for el := m.lruList.Front(); el != nil; el = el.Next() {
		convs = append(convs, m.entries[el.Value.(string)].conv)
	}
	m.mu.Unlock()

	out := make([]Snapshot, len(convs))
	for i, c := range convs {
		out[i] = c.Get()
	}
	return out
}

// Len returns the number of conversations held.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// evictOldestIdle removes the least recently used conversation that has
// no open turn. Busy conversations are never evicted; the store may then
// exceed maxSize until one of them finishes. Must be called with mu held.
func (m *Manager) evictOldestIdle() {
	for el := m.lruList.Back(); el != nil; el = el.Prev() {
		id := el.Value.(string)
		e := m.entries[id]
		if e.conv.Busy() {
			continue
		}
		m.remove(id, e)
		return
	}
}

func (m *Manager) remove(id string, e *entry) {
	m.lruList.Remove(e.lruElem)
	delete(m.entries, id)
	observability.ConversationsActive.Set(float64(len(m.entries)))
}
