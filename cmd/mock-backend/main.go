// Command mock-backend runs deterministic stand-ins for every upstream
// chorus talks to, so the server can be exercised without credentials:
//
//	POST /v1/chat/completions   - OpenAI-compatible streaming chat
//	POST /v1/images/generations - OpenAI image generation (b64_json)
//	GET  /weather               - OpenWeatherMap current weather
//	GET  /flights               - AviationStack flight lookup
//
// Chat replies depend on the last message: "weather", "flight" and
// "draw" trigger the matching function call when functions are offered,
// "policy" yields a content-policy rejection, and a function result is
// summarized.
//
// Configuration:
//
//	MOCK_PORT - Listen port (default: 9090)
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}

	srv := &http.Server{Addr: ":" + port, Handler: newMux()}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock backend starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock backend failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock backend shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

func newMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", handleChatCompletions)
	mux.HandleFunc("POST /v1/images/generations", handleImageGenerations)
	mux.HandleFunc("GET /weather", handleWeather)
	mux.HandleFunc("GET /flights", handleFlights)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	return mux
}

// --- Chat ---

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	Functions []chatFunc    `json:"functions,omitempty"`
	Stream    bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

type chatFunc struct {
	Name string `json:"name"`
}

// reply is what the mock decided to answer.
type reply struct {
	tokens   []string
	function string
	args     string
}

func handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
		writeChatError(w, http.StatusBadRequest, "invalid request", "invalid_request_error", nil)
		return
	}
	if !req.Stream {
		writeChatError(w, http.StatusBadRequest, "only streaming is supported", "invalid_request_error", nil)
		return
	}

	last := req.Messages[len(req.Messages)-1]
	if strings.Contains(strings.ToLower(last.Content), "policy") {
		writeChatError(w, http.StatusBadRequest, "Your request was rejected as a result of our safety system.",
			"invalid_request_error", "content_policy_violation")
		return
	}

	streamReply(w, req.Model, classify(&req))
}

func classify(req *chatRequest) reply {
	last := req.Messages[len(req.Messages)-1]
	if last.Role == "function" {
		return textReply(fmt.Sprintf("Here is what %s returned: %s", last.Name, last.Content))
	}

	text := strings.ToLower(last.Content)
	offered := func(name string) bool {
		for _, f := range req.Functions {
			if f.Name == name {
				return true
			}
		}
		return false
	}

	switch {
	case strings.Contains(text, "weather") && offered("get_current_weather"):
		return reply{function: "get_current_weather", args: fmt.Sprintf(`{"city":%q}`, cityOf(last.Content))}
	case strings.Contains(text, "flight") && offered("get_flight_info"):
		return reply{function: "get_flight_info", args: `{"flightNumber":"BA142"}`}
	case strings.Contains(text, "draw") && offered("generate_images"):
		args, _ := json.Marshal(map[string]string{"prompt": last.Content})
		return reply{function: "generate_images", args: string(args)}
	case strings.Contains(text, "count from 1 to 5"):
		return reply{tokens: []string{"1", ", ", "2", ", ", "3", ", ", "4", ", ", "5"}}
	}
	return reply{tokens: []string{"Hello", ", ", "nice", " ", "day", "!"}}
}

func textReply(s string) reply {
	words := strings.SplitAfter(s, " ")
	return reply{tokens: words}
}

// cityOf returns the word after "in", or Oslo.
func cityOf(s string) string {
	fields := strings.Fields(s)
	for i, f := range fields {
		if strings.EqualFold(f, "in") && i+1 < len(fields) {
			return strings.Trim(fields[i+1], "?.!,")
		}
	}
	return "Oslo"
}

func streamReply(w http.ResponseWriter, model string, rep reply) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	if model == "" {
		model = "mock-model"
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	writeChunk(w, model, map[string]any{"role": "assistant"}, nil)
	flusher.Flush()

	finish := "stop"
	if rep.function != "" {
		// Arguments arrive in two pieces, like real backends split them.
		half := len(rep.args) / 2
		writeChunk(w, model, map[string]any{"function_call": map[string]string{"name": rep.function, "arguments": rep.args[:half]}}, nil)
		writeChunk(w, model, map[string]any{"function_call": map[string]string{"arguments": rep.args[half:]}}, nil)
		flusher.Flush()
		finish = "function_call"
	}
	for _, token := range rep.tokens {
		writeChunk(w, model, map[string]any{"content": token}, nil)
		flusher.Flush()
	}

	writeChunk(w, model, map[string]any{}, &finish)
	fmt.Fprintf(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func writeChunk(w http.ResponseWriter, model string, delta map[string]any, finish *string) {
	chunk := map[string]any{
		"id":     "chatcmpl-mock-stream",
		"object": "chat.completion.chunk",
		"model":  model,
		"choices": []any{map[string]any{
			"index":         0,
			"delta":         delta,
			"finish_reason": finish,
		}},
	}
	data, _ := json.Marshal(chunk)
	fmt.Fprintf(w, "data: %s\n\n", data)
}

func writeChatError(w http.ResponseWriter, status int, message, typ string, code any) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{"message": message, "type": typ, "code": code},
	})
}

// --- Images ---

// mockPNG is a 1x1 transparent PNG.
var mockPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func handleImageGenerations(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Model  string `json:"model"`
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Prompt == "" {
		writeChatError(w, http.StatusBadRequest, "prompt is required", "invalid_request_error", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"created": time.Now().Unix(),
		"data": []map[string]string{{
			"b64_json":       base64.StdEncoding.EncodeToString(mockPNG),
			"revised_prompt": req.Prompt + " (" + req.Model + ")",
		}},
	})
}

// --- Tools ---

func handleWeather(w http.ResponseWriter, r *http.Request) {
	city := r.URL.Query().Get("q")
	if city == "" || strings.EqualFold(city, "atlantis") {
		writeJSON(w, http.StatusNotFound, map[string]string{"cod": "404", "message": "city not found"})
		return
	}
	temp := 7.5
	if r.URL.Query().Get("units") == "imperial" {
		temp = 45.5
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    city,
		"weather": []map[string]string{{"description": "light rain", "icon": "10d"}},
		"main":    map[string]any{"temp": temp, "humidity": 81},
	})
}

func handleFlights(w http.ResponseWriter, r *http.Request) {
	number := r.URL.Query().Get("flight_iata")
	if number == "" {
		writeJSON(w, http.StatusOK, map[string]any{"data": []any{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data": []map[string]any{{
			"flight_status": "scheduled",
			"flight":        map[string]string{"iata": number},
			"airline":       map[string]string{"name": "British Airways"},
			"departure":     map[string]string{"airport": "Heathrow", "iata": "LHR", "terminal": "5", "gate": "A10", "scheduled": "2026-10-15T20:40:00+00:00"},
			"arrival":       map[string]string{"airport": "Indira Gandhi International", "iata": "DEL", "terminal": "3", "scheduled": "2026-10-16T10:05:00+00:00"},
		}},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
