package runlog

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Server exposes a Store over HTTP: POST /records, GET /summary,
// GET /health, and a small dashboard page at /.
type Server struct {
	store Store
	addr  string
	log   zerolog.Logger
}

// NewServer creates a server over the given Store.
func NewServer(store Store, addr string, log zerolog.Logger) *Server {
	if addr == "" {
		addr = ":8080"
	}
	return &Server{store: store, addr: addr, log: log}
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /records", s.handleRecord)
	mux.HandleFunc("GET /summary", s.handleSummary)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

// ListenAndServe starts the HTTP server and blocks.
func (s *Server) ListenAndServe() error {
	s.log.Info().Str("addr", s.addr).Msg("runlog server listening")
	return http.ListenAndServe(s.addr, s.Handler())
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	var rec Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if rec.Template == "" {
		http.Error(w, "template required", http.StatusBadRequest)
		return
	}
	if err := s.store.Record(r.Context(), rec); err != nil {
		s.log.Error().Err(err).Msg("record failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	q := Query{
		Template: r.URL.Query().Get("template"),
		Model:    r.URL.Query().Get("model"),
		GroupBy:  r.URL.Query().Get("group_by"),
	}
	if from := r.URL.Query().Get("from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			q.From = t
		}
	}
	if to := r.URL.Query().Get("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			q.To = t
		}
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 {
			q.Limit = n
		}
	}
	summaries, err := s.store.Summarize(r.Context(), q)
	if err != nil {
		s.log.Error().Err(err).Msg("summarize failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Summaries []Summary `json:"summaries"`
	}{Summaries: summaries})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
