// Package web provides an HTTP status server for the thermo-sensor daemon.
package web

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/sweeney/thermo-sensor/internal/status"
)

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
}

// New creates a Server that reads state from the given tracker.
func New(addr string, tracker *status.Tracker) *Server {
	s := &Server{tracker: tracker}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/history.json", s.handleHistory)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// HistoryJSON is the response of /history.json.
type HistoryJSON struct {
	Channel int                `json:"channel"`
	Name    string             `json:"name,omitempty"`
	Points  []HistoryPointJSON `json:"points"`
}

// HistoryPointJSON is one past reading.
type HistoryPointJSON struct {
	Timestamp   string  `json:"timestamp"`
	HotJunction float64 `json:"hot_junction_c"`
	Fault       string  `json:"fault"`
}

// handleHistory serves the recent readings of ?channel=N.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(r.URL.Query().Get("channel"))
	if err != nil {
		http.Error(w, "channel must be an integer", http.StatusBadRequest)
		return
	}
	c, ok := s.tracker.Snapshot().Channel(n)
	if !ok {
		http.NotFound(w, r)
		return
	}

	h := HistoryJSON{Channel: c.Channel, Name: c.Name, Points: make([]HistoryPointJSON, 0, len(c.History))}
	for _, p := range c.History {
		h.Points = append(h.Points, HistoryPointJSON{
			Timestamp:   p.Time.UTC().Format(time.RFC3339),
			HotJunction: p.HotJunction,
			Fault:       p.Fault.String(),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h)
}
