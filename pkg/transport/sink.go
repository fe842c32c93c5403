package transport

import (
	"context"
	"slices"
	"sync"

	"github.com/rhuss/chorus/pkg/api"
	"github.com/rhuss/chorus/pkg/engine"
)

// CollectingSink buffers every fragment of a turn. The zero value is
// ready to use.
type CollectingSink struct {
	mu        sync.Mutex
	fragments []api.Fragment
	final     *api.Fragment
	turnID    string
}

var _ engine.RenderSink = (*CollectingSink)(nil)

// Emit records a non-terminal fragment.
func (s *CollectingSink) Emit(_ context.Context, f api.Fragment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fragments = append(s.fragments, f)
	return nil
}

// Finish records the terminal fragment.
func (s *CollectingSink) Finish(_ context.Context, turnID string, f api.Fragment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turnID = turnID
	s.final = &f
	return nil
}

// Fragments returns the non-terminal fragments in delivery order.
func (s *CollectingSink) Fragments() []api.Fragment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.fragments)
}

// Final returns the terminal fragment, if the turn finished.
func (s *CollectingSink) Final() (api.Fragment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.final == nil {
		return api.Fragment{}, false
	}
	return *s.final, true
}

// TurnID returns the ID of the finished turn, "" before Finish.
func (s *CollectingSink) TurnID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turnID
}
