package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/rhuss/chorus/pkg/api"
	"github.com/rhuss/chorus/pkg/backend"
	"github.com/rhuss/chorus/pkg/conversation"
	"github.com/rhuss/chorus/pkg/debug"
	"github.com/rhuss/chorus/pkg/engine"
	"github.com/rhuss/chorus/pkg/observability"
	"github.com/rhuss/chorus/pkg/transport"
)

// Adapter serves the orchestrator over HTTP. Turns stream as SSE unless
// the caller asks for a single JSON response.
type Adapter struct {
	orch     transport.Orchestrator
	turns    transport.TurnRunner // orch wrapped in middleware
	inflight *transport.InFlightRegistry
	mux      *http.ServeMux
	config   Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize int64
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize: 1 << 20, // 1 MB
	}
}

// NewAdapter creates an HTTP adapter for orch. Middleware is applied to
// turn execution in the given order.
func NewAdapter(orch transport.Orchestrator, cfg Config, middlewares ...transport.Middleware) *Adapter {
	var turns transport.TurnRunner = orch
	if len(middlewares) > 0 {
		turns = transport.Chain(middlewares...)(turns)
	}

	a := &Adapter{
		orch:     orch,
		turns:    turns,
		inflight: transport.NewInFlightRegistry(),
		mux:      http.NewServeMux(),
		config:   cfg,
	}

	a.mux.HandleFunc("POST /v1/conversations", a.handleCreateConversation)
	a.mux.HandleFunc("GET /v1/conversations", a.handleListConversations)
	a.mux.HandleFunc("GET /v1/conversations/{id}", a.handleGetConversation)
	a.mux.HandleFunc("DELETE /v1/conversations/{id}", a.handleDeleteConversation)
	a.mux.HandleFunc("POST /v1/conversations/{id}/reset", a.handleReset)
	a.mux.HandleFunc("PUT /v1/conversations/{id}/backend", a.handleSelectBackend)
	a.mux.HandleFunc("POST /v1/conversations/{id}/turns", a.handleTurn)
	a.mux.HandleFunc("DELETE /v1/conversations/{id}/turn", a.handleCancelTurn)
	a.mux.HandleFunc("POST /v1/broadcast", a.handleBroadcast)
	a.mux.HandleFunc("GET /v1/backends", a.handleListBackends)

	return a
}

// Handle registers an extra handler on the adapter's mux (health checks,
// metrics).
func (a *Adapter) Handle(pattern string, h http.Handler) {
	a.mux.Handle(pattern, h)
}

// Handler returns the http.Handler for this adapter, with request ID
// propagation and HTTP metrics applied.
func (a *Adapter) Handler() http.Handler {
	return httpRequestIDMiddleware(observability.MetricsMiddleware(a.mux))
}

// httpRequestIDMiddleware propagates the X-Request-ID header into the
// request context and echoes the effective ID on the response.
func httpRequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get("X-Request-ID"); id != "" {
			r = r.WithContext(transport.ContextWithRequestID(r.Context(), id))
		}
		rw := &requestIDResponseWriter{ResponseWriter: w, r: r}
		next.ServeHTTP(rw, r)
	})
}

// requestIDResponseWriter injects the X-Request-ID header before the
// first write.
type requestIDResponseWriter struct {
	http.ResponseWriter
	r           *http.Request
	headersSent bool
}

func (w *requestIDResponseWriter) WriteHeader(statusCode int) {
	w.ensureRequestIDHeader()
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *requestIDResponseWriter) Write(b []byte) (int, error) {
	w.ensureRequestIDHeader()
	return w.ResponseWriter.Write(b)
}

func (w *requestIDResponseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the underlying ResponseWriter for http.NewResponseController.
func (w *requestIDResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *requestIDResponseWriter) ensureRequestIDHeader() {
	if w.headersSent {
		return
	}
	w.headersSent = true
	if id := transport.RequestIDFromContext(w.r.Context()); id != "" {
		w.ResponseWriter.Header().Set("X-Request-ID", id)
	}
}

type createConversationRequest struct {
	Backend string `json:"backend,omitempty"`
	Preset  string `json:"preset,omitempty"`
}

type conversationList struct {
	Object string                  `json:"object"`
	Data   []conversation.Snapshot `json:"data"`
}

type selectBackendRequest struct {
	Backend string `json:"backend"`
}

type turnRequest struct {
	Text    string `json:"text"`
	Backend string `json:"backend,omitempty"`

	// Tools and Stream default to true when omitted.
	Tools  *bool `json:"tools,omitempty"`
	Stream *bool `json:"stream,omitempty"`
}

type turnResponse struct {
	ConversationID string         `json:"conversation_id"`
	TurnID         string         `json:"turn_id"`
	Fragments      []api.Fragment `json:"fragments"`
	Final          api.Fragment   `json:"final"`
}

type broadcastRequest struct {
	Text            string   `json:"text"`
	ConversationIDs []string `json:"conversation_ids,omitempty"`

	// Preset creates one new conversation per backend of the preset and
	// broadcasts to those.
	Preset string `json:"preset,omitempty"`
	Stream *bool  `json:"stream,omitempty"`
}

type broadcastResult struct {
	ConversationID string        `json:"conversation_id"`
	TurnID         string        `json:"turn_id,omitempty"`
	Final          *api.Fragment `json:"final,omitempty"`
	Error          *api.Error    `json:"error,omitempty"`
}

type broadcastResponse struct {
	Object  string            `json:"object"`
	Results []broadcastResult `json:"results"`
}

type backendList struct {
	Object  string               `json:"object"`
	Default string               `json:"default"`
	Presets []string             `json:"presets"`
	Data    []backend.Descriptor `json:"data"`
}

// handleCreateConversation handles POST /v1/conversations. An empty body
// creates one conversation on the default backend; a preset creates one
// conversation per preset backend.
func (a *Adapter) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if !a.decode(w, r, &req, true) {
		return
	}
	if req.Backend != "" && req.Preset != "" {
		transport.WriteAPIError(w, api.NewInvalidRequestError("backend and preset are mutually exclusive"))
		return
	}

	if req.Preset != "" {
		convs, err := a.orch.CreateFromPreset(req.Preset)
		if err != nil {
			transport.WriteAPIError(w, err)
			return
		}
		list := conversationList{Object: "list", Data: make([]conversation.Snapshot, 0, len(convs))}
		for _, c := range convs {
			list.Data = append(list.Data, c.Get())
		}
		writeJSON(w, http.StatusCreated, list)
		return
	}

	conv, err := a.orch.CreateConversation(req.Backend)
	if err != nil {
		transport.WriteAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, conv.Get())
}

// handleListConversations handles GET /v1/conversations.
func (a *Adapter) handleListConversations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, conversationList{Object: "list", Data: a.orch.Conversations().List()})
}

// handleGetConversation handles GET /v1/conversations/{id}.
func (a *Adapter) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	snap, err := a.orch.Snapshot(r.PathValue("id"))
	if err != nil {
		transport.WriteAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleDeleteConversation handles DELETE /v1/conversations/{id}.
func (a *Adapter) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	if err := a.orch.DeleteConversation(r.PathValue("id")); err != nil {
		transport.WriteAPIError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReset handles POST /v1/conversations/{id}/reset.
func (a *Adapter) handleReset(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.orch.Reset(id); err != nil {
		transport.WriteAPIError(w, err)
		return
	}
	a.writeSnapshot(w, id)
}

// handleSelectBackend handles PUT /v1/conversations/{id}/backend.
func (a *Adapter) handleSelectBackend(w http.ResponseWriter, r *http.Request) {
	var req selectBackendRequest
	if !a.decode(w, r, &req, false) {
		return
	}
	if req.Backend == "" {
		transport.WriteAPIError(w, api.NewInvalidRequestError("backend is required"))
		return
	}
	id := r.PathValue("id")
	if err := a.orch.SelectBackend(id, req.Backend); err != nil {
		transport.WriteAPIError(w, err)
		return
	}
	a.writeSnapshot(w, id)
}

// handleTurn handles POST /v1/conversations/{id}/turns.
func (a *Adapter) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if !a.decode(w, r, &req, false) {
		return
	}
	if req.Text == "" {
		transport.WriteAPIError(w, api.NewInvalidRequestError("text is required"))
		return
	}

	id := r.PathValue("id")
	u := engine.Utterance{
		ConversationID: id,
		Text:           req.Text,
		BackendID:      req.Backend,
		AllowToolCalls: req.Tools == nil || *req.Tools,
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	release, _ := a.inflight.Register(id, cancel)
	defer release()

	if req.Stream != nil && !*req.Stream {
		var sink transport.CollectingSink
		if err := a.turns.RunTurn(ctx, id, u, &sink); err != nil {
			transport.WriteAPIError(w, err)
			return
		}
		final, _ := sink.Final()
		writeJSON(w, http.StatusOK, turnResponse{
			ConversationID: id,
			TurnID:         sink.TurnID(),
			Fragments:      nonNil(sink.Fragments()),
			Final:          final,
		})
		return
	}

	stream := newSSEStream(w)
	err := a.turns.RunTurn(ctx, id, u, &sseSink{stream: stream, conversationID: id, closes: true})
	a.finishStream(w, stream, err)
}

// handleCancelTurn handles DELETE /v1/conversations/{id}/turn. The turn
// still commits, with a cancellation notice as its outcome.
func (a *Adapter) handleCancelTurn(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !a.inflight.Cancel(id) {
		transport.WriteAPIError(w, api.NewNotFoundError(fmt.Sprintf("conversation %q has no turn in progress", id)))
		return
	}
	debug.Log("transport", "turn cancelled by client", "conversation_id", id)
	w.WriteHeader(http.StatusAccepted)
}

// handleBroadcast handles POST /v1/broadcast. Streaming responses
// interleave the fragments of all conversations, each tagged with its
// conversation ID, and end with a broadcast.done event.
func (a *Adapter) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if !a.decode(w, r, &req, false) {
		return
	}
	if req.Text == "" {
		transport.WriteAPIError(w, api.NewInvalidRequestError("text is required"))
		return
	}
	if (len(req.ConversationIDs) == 0) == (req.Preset == "") {
		transport.WriteAPIError(w, api.NewInvalidRequestError("exactly one of conversation_ids and preset is required"))
		return
	}

	ids := req.ConversationIDs
	if req.Preset != "" {
		convs, err := a.orch.CreateFromPreset(req.Preset)
		if err != nil {
			transport.WriteAPIError(w, err)
			return
		}
		ids = make([]string, 0, len(convs))
		for _, c := range convs {
			ids = append(ids, c.ID())
		}
	}

	if req.Stream != nil && !*req.Stream {
		sinks := make(map[string]*transport.CollectingSink, len(ids))
		for _, id := range ids {
			sinks[id] = &transport.CollectingSink{}
		}
		results, err := a.orch.Broadcast(r.Context(), req.Text, ids, func(id string) engine.RenderSink { return sinks[id] })
		if err != nil {
			transport.WriteAPIError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, broadcastResponse{Object: "broadcast", Results: collectResults(results, sinks)})
		return
	}

	stream := newSSEStream(w)
	results, err := a.orch.Broadcast(r.Context(), req.Text, ids, func(id string) engine.RenderSink {
		return &sseSink{stream: stream, conversationID: id}
	})
	if err != nil {
		a.finishStream(w, stream, err)
		return
	}
	if err := stream.writeEvent(eventBroadcastDone, broadcastResponse{Object: "broadcast", Results: collectResults(results, nil)}, true); err != nil {
		debug.Log("transport", "broadcast stream closed early", "error", err)
	}
}

// handleListBackends handles GET /v1/backends.
func (a *Adapter) handleListBackends(w http.ResponseWriter, _ *http.Request) {
	reg := a.orch.Backends()
	writeJSON(w, http.StatusOK, backendList{
		Object:  "list",
		Default: reg.Default().ID,
		Presets: reg.PresetNames(),
		Data:    reg.List(),
	})
}

// finishStream reports err on the stream, or as a JSON error when no
// event has been written yet.
func (a *Adapter) finishStream(w http.ResponseWriter, stream *sseStream, err error) {
	if err == nil {
		return
	}
	apiErr := api.Normalize("", err)
	if !stream.started() {
		transport.WriteErrorResponse(w, apiErr, transport.HTTPStatusFromError(apiErr))
		return
	}
	if stream.completed() {
		// The client went away after the terminal event.
		debug.Log("transport", "stream error after completion", "error", err)
		return
	}
	if werr := stream.fail(apiErr); werr != nil {
		slog.Warn("could not deliver stream error", "error", werr)
	}
}

func (a *Adapter) writeSnapshot(w http.ResponseWriter, id string) {
	snap, err := a.orch.Snapshot(id)
	if err != nil {
		transport.WriteAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// decode reads a JSON body into v. allowEmpty accepts a missing body.
// It writes the error response itself and reports whether to continue.
func (a *Adapter) decode(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err != nil || mt != "application/json" {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("Content-Type must be application/json"),
				http.StatusUnsupportedMediaType,
			)
			return false
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return true
		}
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError(fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge,
			)
			return false
		}
		transport.WriteAPIError(w, api.NewInvalidRequestError("invalid JSON: "+err.Error()))
		return false
	}
	return true
}

func collectResults(results []engine.BroadcastResult, sinks map[string]*transport.CollectingSink) []broadcastResult {
	out := make([]broadcastResult, 0, len(results))
	for _, res := range results {
		br := broadcastResult{ConversationID: res.ConversationID}
		if res.Err != nil {
			br.Error = api.Normalize("", res.Err)
		}
		if s, ok := sinks[res.ConversationID]; ok {
			br.TurnID = s.TurnID()
			if f, ok := s.Final(); ok {
				br.Final = &f
			}
		}
		out = append(out, br)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
