// Package diagnostics serves a small HTTP API over an events.Bus so a
// verification run's signal/step lifecycle can be watched live. There
// is no UI to serve here — just status, history and an SSE stream — since a
// verifier has no commands, context store, or approval flow to
// expose.
package diagnostics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/soderholm/streamverify/events"
)

// Server is the diagnostics HTTP server.
type Server struct {
	bus       events.Bus
	mux       *http.ServeMux
	startTime time.Time

	mu      sync.Mutex
	clients map[*sseClient]bool
}

type sseClient struct {
	send chan []byte
}

// New creates a diagnostics server over bus.
func New(bus events.Bus) *Server {
	s := &Server{
		bus:       bus,
		mux:       http.NewServeMux(),
		startTime: time.Now(),
		clients:   make(map[*sseClient]bool),
	}

	s.mux.HandleFunc("/api/status", s.handleStatus)
	s.mux.HandleFunc("/api/history", s.handleHistory)
	s.mux.HandleFunc("/api/stream", s.handleStream)

	return s
}

// Start begins serving on addr (e.g. ":4200"), blocking until the
// listener fails.
func (s *Server) Start(addr string) error {
	s.subscribeAndBroadcast()
	return http.ListenAndServe(addr, s.mux)
}

// StartAsync starts the server in a goroutine and returns immediately.
func (s *Server) StartAsync(addr string) {
	s.subscribeAndBroadcast()
	go http.ListenAndServe(addr, s.mux)
}

func (s *Server) subscribeAndBroadcast() {
	ch := s.bus.Subscribe()
	go func() {
		for ev := range ch {
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			s.mu.Lock()
			for c := range s.clients {
				select {
				case c.send <- data:
				default:
				}
			}
			s.mu.Unlock()
		}
	}()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	history := s.bus.History(time.Time{})
	matched, failed := 0, 0
	for _, ev := range history {
		switch ev.Type {
		case events.TypeStepMatched:
			matched++
		case events.TypeStepFailed:
			failed++
		}
	}
	writeJSON(w, map[string]any{
		"uptime":        time.Since(s.startTime).String(),
		"events":        len(history),
		"steps_matched": matched,
		"steps_failed":  failed,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.bus.History(time.Time{}))
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	client := &sseClient{send: make(chan []byte, 64)}
	s.mu.Lock()
	s.clients[client] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.clients, client)
		s.mu.Unlock()
	}()

	for _, ev := range s.bus.History(time.Time{}) {
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
	}
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-client.send:
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}
