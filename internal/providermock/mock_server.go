// Package providermock provides a fake inference provider for tests:
// an OpenAI-compatible HTTP server with a configurable model list and
// canned streaming responses.
package providermock

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
)

// Server simulates the local inference provider.
type Server struct {
	server *httptest.Server

	mu           sync.Mutex
	models       []string
	streamChunks []string
	requestCount int
	lastChatBody map[string]any
}

// New starts a mock provider exposing the given models.
func New(models ...string) *Server {
	s := &Server{
		models: models,
		streamChunks: []string{
			`{"id":"mock-1","choices":[{"index":0,"delta":{"role":"assistant","content":"OK"},"finish_reason":null}]}`,
			`{"id":"mock-1","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
		},
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.handler))
	return s
}

// URL returns the mock provider's base URL.
func (s *Server) URL() string {
	return s.server.URL
}

// Close shuts the mock provider down.
func (s *Server) Close() {
	s.server.Close()
}

// SetStreamChunks replaces the canned chat completion stream.
func (s *Server) SetStreamChunks(chunks ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamChunks = chunks
}

// RequestCount returns how many requests the provider has served.
func (s *Server) RequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requestCount
}

// LastChatBody returns the most recent chat completion body received.
func (s *Server) LastChatBody() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastChatBody
}

func (s *Server) handler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requestCount++
	s.mu.Unlock()

	switch r.URL.Path {
	case "/v1/models":
		s.handleModels(w)
	case "/v1/chat/completions":
		s.handleChat(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"unexpected path"}`))
	}
}

func (s *Server) handleModels(w http.ResponseWriter) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type modelInfo struct {
		ID     string `json:"id"`
		Object string `json:"object"`
	}
	list := struct {
		Object string      `json:"object"`
		Data   []modelInfo `json:"data"`
	}{Object: "list"}
	for _, id := range s.models {
		list.Data = append(list.Data, modelInfo{ID: id, Object: "model"})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	s.lastChatBody = body
	chunks := append([]string(nil), s.streamChunks...)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/event-stream")
	flusher, _ := w.(http.Flusher)
	for _, chunk := range chunks {
		_, _ = fmt.Fprintf(w, "data: %s\n\n", chunk)
		if flusher != nil {
			flusher.Flush()
		}
	}
	_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
}
