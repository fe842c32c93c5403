package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/rhuss/chorus/pkg/api"
	"github.com/rhuss/chorus/pkg/engine"
)

// SSE event names.
const (
	eventFragment      = "fragment"
	eventTurnDone      = "turn.done"
	eventBroadcastDone = "broadcast.done"
	eventError         = "error"
)

type streamState int

const (
	streamIdle      streamState = iota // no event written yet
	streamOpen                         // headers sent, events flowing
	streamCompleted                    // terminal event and [DONE] sent
)

// sseStream serializes events onto one HTTP response. Several sinks may
// share a stream (broadcast), so every write holds the lock.
type sseStream struct {
	w  http.ResponseWriter
	rc *http.ResponseController

	mu    sync.Mutex
	state streamState
}

func newSSEStream(w http.ResponseWriter) *sseStream {
	return &sseStream{w: w, rc: http.NewResponseController(w)}
}

// writeEvent sends one event formatted as
//
//	event: {name}\n
//	data: {json}\n
//	\n
//
// A terminal event is followed by "data: [DONE]" and closes the stream.
func (s *sseStream) writeEvent(name string, v any, terminal bool) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == streamCompleted {
		return errors.New("cannot write event: stream is completed")
	}
	if s.state == streamIdle {
		s.w.Header().Set("Content-Type", "text/event-stream")
		s.w.Header().Set("Cache-Control", "no-cache")
		s.w.Header().Set("Connection", "keep-alive")
		s.state = streamOpen
	}

	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if terminal {
		if _, err := fmt.Fprint(s.w, "data: [DONE]\n\n"); err != nil {
			return fmt.Errorf("failed to write [DONE]: %w", err)
		}
		s.state = streamCompleted
	}
	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	return nil
}

// started reports whether any event has been written.
func (s *sseStream) started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != streamIdle
}

// completed reports whether the terminal event has been written.
func (s *sseStream) completed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == streamCompleted
}

// fail ends an open stream with an error event.
func (s *sseStream) fail(apiErr *api.Error) error {
	return s.writeEvent(eventError, api.ErrorResponse{Error: apiErr}, true)
}

// fragmentEvent is the payload of a "fragment" event.
type fragmentEvent struct {
	ConversationID string `json:"conversation_id"`
	api.Fragment
}

// turnDoneEvent is the payload of a "turn.done" event.
type turnDoneEvent struct {
	ConversationID string           `json:"conversation_id"`
	TurnID         string           `json:"turn_id"`
	Outcome        api.FragmentKind `json:"outcome"`
}

// sseSink renders one conversation's fragments onto a stream.
type sseSink struct {
	stream         *sseStream
	conversationID string

	// closes is set when the turn owns the stream; its turn.done event
	// then ends the response.
	closes bool
}

var _ engine.RenderSink = (*sseSink)(nil)

func (s *sseSink) Emit(_ context.Context, f api.Fragment) error {
	return s.stream.writeEvent(eventFragment, fragmentEvent{ConversationID: s.conversationID, Fragment: f}, false)
}

func (s *sseSink) Finish(_ context.Context, turnID string, f api.Fragment) error {
	if err := s.stream.writeEvent(eventFragment, fragmentEvent{ConversationID: s.conversationID, Fragment: f}, false); err != nil {
		return err
	}
	done := turnDoneEvent{ConversationID: s.conversationID, TurnID: turnID, Outcome: f.Kind}
	return s.stream.writeEvent(eventTurnDone, done, s.closes)
}
