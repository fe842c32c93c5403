package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/rhuss/chorus/pkg/api"
	"github.com/rhuss/chorus/pkg/backend"
	"github.com/rhuss/chorus/pkg/conversation"
	"github.com/rhuss/chorus/pkg/provider"
	"github.com/rhuss/chorus/pkg/tools"
)

// ToolDispatcher runs tool calls requested by a model.
type ToolDispatcher interface {
	Definitions() []provider.FunctionDefinition
	Dispatch(ctx context.Context, call tools.ToolCall, env tools.Env) (*tools.Result, error)
}

// Engine coordinates turns between conversations, chat backends and tools.
// It is safe for concurrent use; each conversation admits one turn at a
// time.
type Engine struct {
	backends *backend.Registry
	adapters *provider.Set
	convs    *conversation.Manager
	tools    ToolDispatcher
	cfg      Config
}

// New creates an Engine. tools may be nil, in which case no tools are
// offered to backends.
func New(backends *backend.Registry, adapters *provider.Set, convs *conversation.Manager, tools ToolDispatcher, cfg Config) (*Engine, error) {
	if backends == nil || adapters == nil || convs == nil {
		return nil, errors.New("engine: backends, adapters and conversations are required")
	}
	return &Engine{
		backends: backends,
		adapters: adapters,
		convs:    convs,
		tools:    tools,
		cfg:      cfg,
	}, nil
}

// Backends returns the backend registry.
func (e *Engine) Backends() *backend.Registry { return e.backends }

// Conversations returns the conversation manager.
func (e *Engine) Conversations() *conversation.Manager { return e.convs }

// chatBackend resolves id and checks that a chat adapter can serve it.
func (e *Engine) chatBackend(id string) (backend.Descriptor, error) {
	d, err := e.backends.Resolve(id)
	if err != nil {
		return backend.Descriptor{}, err
	}
	if _, err := e.adapters.Chat(d); err != nil {
		return backend.Descriptor{}, err
	}
	return d, nil
}

// CreateConversation starts an empty conversation on backendID, or on the
// default backend when backendID is empty.
func (e *Engine) CreateConversation(backendID string) (*conversation.Conversation, error) {
	if backendID == "" {
		backendID = e.backends.Default().ID
	}
	d, err := e.chatBackend(backendID)
	if err != nil {
		return nil, err
	}
	return e.convs.Create(d.ID), nil
}

// CreateFromPreset starts one conversation per backend of a preset. Every
// backend is checked before any conversation is created.
func (e *Engine) CreateFromPreset(name string) ([]*conversation.Conversation, error) {
	ids, err := e.backends.Preset(name)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, err := e.chatBackend(id); err != nil {
			return nil, err
		}
	}
	out := make([]*conversation.Conversation, 0, len(ids))
	for _, id := range ids {
		out = append(out, e.convs.Create(id))
	}
	slog.Info("created conversations from preset", "preset", name, "count", len(out))
	return out, nil
}

// SelectBackend switches a conversation to another backend. It fails with
// backend_unsupported when the backend cannot hold a conversation (an image
// backend, or a provider without a configured adapter).
func (e *Engine) SelectBackend(conversationID, backendID string) error {
	conv, err := e.convs.Get(conversationID)
	if err != nil {
		return err
	}
	d, err := e.chatBackend(backendID)
	if err != nil {
		return err
	}
	conv.SetBackend(d.ID)
	return nil
}

// Reset clears a conversation's messages.
func (e *Engine) Reset(conversationID string) error {
	conv, err := e.convs.Get(conversationID)
	if err != nil {
		return err
	}
	return conv.Reset()
}

// Snapshot returns the current state of a conversation.
func (e *Engine) Snapshot(conversationID string) (conversation.Snapshot, error) {
	conv, err := e.convs.Get(conversationID)
	if err != nil {
		return conversation.Snapshot{}, err
	}
	return conv.Get(), nil
}

// DeleteConversation removes a conversation. A conversation with an open
// turn cannot be deleted.
func (e *Engine) DeleteConversation(conversationID string) error {
	conv, err := e.convs.Get(conversationID)
	if err != nil {
		return err
	}
	if conv.Busy() {
		return api.NewTurnInFlightError(conversationID)
	}
	return e.convs.Delete(conversationID)
}
