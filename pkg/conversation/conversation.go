package conversation

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rhuss/chorus/pkg/api"
	"github.com/rhuss/chorus/pkg/debug"
)

// Snapshot is a point-in-time copy of a conversation. It shares no memory
// with the live conversation.
type Snapshot struct {
	ID            string        `json:"id"`
	Messages      []api.Message `json:"messages"`
	ActiveBackend string        `json:"active_backend"`

	// Pending is the partial message of the open turn, nil when no turn is
	// open or nothing has been produced yet.
	Pending *api.Message `json:"pending,omitempty"`

	// TurnID identifies the open turn, empty when idle.
	TurnID string `json:"turn_id,omitempty"`

	// Version increases on every mutation.
	Version uint64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Conversation is safe for concurrent use.
type Conversation struct {
	mu sync.RWMutex

	id            string
	messages      []api.Message
	activeBackend string
	turn          *Turn
	pending       *api.Message
	version       uint64
	createdAt     time.Time
	updatedAt     time.Time
}

// New creates an empty conversation using backendID.
func New(id, backendID string) *Conversation {
	now := time.Now()
	return &Conversation{
		id:            id,
		activeBackend: backendID,
		createdAt:     now,
		updatedAt:     now,
	}
}

// ID returns the conversation ID.
func (c *Conversation) ID() string { return c.id }

// Get returns a snapshot of the conversation.
func (c *Conversation) Get() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		ID:            c.id,
		Messages:      slices.Clone(c.messages),
		ActiveBackend: c.activeBackend,
		Version:       c.version,
		CreatedAt:     c.createdAt,
		UpdatedAt:     c.updatedAt,
	}
	if s.Messages == nil {
		s.Messages = []api.Message{}
	}
	if c.pending != nil {
		p := *c.pending
		s.Pending = &p
	}
	if c.turn != nil {
		s.TurnID = c.turn.id
	}
	return s
}

// Busy reports whether a turn is open.
func (c *Conversation) Busy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.turn != nil
}

// Begin opens a turn and appends the user message to the log. It fails
// with api.ErrorKindTurnInFlight while another turn is open.
func (c *Conversation) Begin(user api.Message) (*Turn, error) {
	return c.BeginOn("", user)
}

// BeginOn is Begin that first switches the active backend to backendID.
// The switch only happens when the turn opens; a rejected call leaves the
// conversation untouched. An empty backendID keeps the active backend.
func (c *Conversation) BeginOn(backendID string, user api.Message) (*Turn, error) {
	if user.Role == "" {
		user.Role = api.RoleUser
	}
	if user.Role != api.RoleUser {
		return nil, api.NewInvalidRequestError("a turn must start with a user message")
	}
	if strings.TrimSpace(user.Content) == "" {
		return nil, api.NewInvalidRequestError("message text is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.turn != nil {
		return nil, api.NewTurnInFlightError(c.id)
	}
	if backendID != "" {
		c.activeBackend = backendID
	}

	t := &Turn{
		c:       c,
		id:      api.NewTurnID(),
		backend: c.activeBackend,
		started: time.Now(),
	}
	c.turn = t
	c.pending = nil
	c.messages = append(c.messages, user)
	c.touch()

	debug.Log("conversation", "turn opened", "conversation", c.id, "turn", t.id, "backend", t.backend)
	return t, nil
}

// SetBackend changes the backend used by subsequent turns. An open turn
// keeps the backend it started with.
func (c *Conversation) SetBackend(backendID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeBackend == backendID {
		return
	}
	c.activeBackend = backendID
	c.touch()
}

// Reset clears the message log. It is rejected while a turn is open.
func (c *Conversation) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.turn != nil {
		return api.NewTurnInFlightError(c.id)
	}
	c.messages = nil
	c.pending = nil
	c.touch()
	return nil
}

// touch must be called with mu held for writing.
func (c *Conversation) touch() {
	c.version++
	c.updatedAt = time.Now()
}
