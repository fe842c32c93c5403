package conversation

import (
	"time"

	"github.com/rhuss/chorus/pkg/api"
	"github.com/rhuss/chorus/pkg/debug"
)

// Patch is a partial update to the pending message of a turn. Role and
// Name replace the current values when set; Delta is appended.
type Patch struct {
	Role  api.Role
	Name  string
	Delta string
}

// Turn is the single in-flight exchange of a conversation. All state lives
// in the owning Conversation and is guarded by its lock.
type Turn struct {
	c         *Conversation
	id        string
	backend   string
	started   time.Time
	committed bool
}

// ID returns the turn ID.
func (t *Turn) ID() string { return t.id }

// Backend returns the backend ID that was active when the turn began.
func (t *Turn) Backend() string { return t.backend }

// Started returns when the turn was opened.
func (t *Turn) Started() time.Time { return t.started }

// Update merges p into the pending message.
func (t *Turn) Update(p Patch) error {
	c := t.c
	c.mu.Lock()
	defer c.mu.Unlock()

	if t.committed {
		return ErrTurnClosed
	}
	if c.pending == nil {
		c.pending = &api.Message{Role: api.RoleAssistant}
	}
	if p.Role != "" {
		c.pending.Role = p.Role
	}
	if p.Name != "" {
		c.pending.Name = p.Name
	}
	c.pending.Content += p.Delta
	c.touch()
	return nil
}

// Commit appends final to the log and closes the turn. Only the first
// call has an effect; later calls return ErrTurnClosed.
func (t *Turn) Commit(final api.Message) error {
	c := t.c
	c.mu.Lock()
	defer c.mu.Unlock()

	if t.committed {
		return ErrTurnClosed
	}
	t.committed = true

	if final.Role == "" {
		final.Role = api.RoleAssistant
	}
	c.messages = append(c.messages, final)
	c.pending = nil
	c.turn = nil
	c.touch()

	debug.Log("conversation", "turn committed",
		"conversation", c.id, "turn", t.id, "role", final.Role, "elapsed", time.Since(t.started))
	return nil
}

// Committed reports whether Commit has been called.
func (t *Turn) Committed() bool {
	t.c.mu.RLock()
	defer t.c.mu.RUnlock()
	return t.committed
}
