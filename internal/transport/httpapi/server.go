// Package httpapi exposes the graph transformer to the chat front-end:
// one endpoint renders from a traced session, one from raw tool calls
// posted by the client.
package httpapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stella-ai/tracegraph/internal/graph"
	"github.com/stella-ai/tracegraph/internal/pipeline"
)

// Server handles graph rendering requests.
type Server struct {
	pipeline *pipeline.Pipeline
	logger   *slog.Logger
}

// NewServer creates a Server. A nil logger falls back to slog.Default.
func NewServer(p *pipeline.Pipeline, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{pipeline: p, logger: logger}
}

// Router returns the HTTP handler with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/graph/{sessionID}", s.handleSessionGraph)
	r.Post("/graph", s.handleLegacyGraph)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "tracegraph",
	})
}

// handleSessionGraph renders the graph for a traced session. The trace
// fetch may fall back to nothing; the response is still a valid graph.
func (s *Server) handleSessionGraph(w http.ResponseWriter, r *http.Request) {
	req := requestFromQuery(r)
	req.SessionID = chi.URLParam(r, "sessionID")

	g := s.pipeline.Render(r.Context(), req)
	writeJSON(w, http.StatusOK, g)
}

// handleLegacyGraph renders from a raw tool-call payload in the body.
func (s *Server) handleLegacyGraph(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 4<<20))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	req := requestFromQuery(r)
	req.Raw = json.RawMessage(body)

	g := s.pipeline.Render(r.Context(), req)
	writeJSON(w, http.StatusOK, g)
}

// requestFromQuery decodes the shared query parameters: step (animation
// cursor, default whole run), lang, q (user query) and nocache.
func requestFromQuery(r *http.Request) pipeline.Request {
	req := pipeline.Request{
		CurrentStep: graph.WholeRun,
		Language:    r.URL.Query().Get("lang"),
		UserQuery:   r.URL.Query().Get("q"),
	}
	if raw := r.URL.Query().Get("step"); raw != "" {
		if step, err := strconv.Atoi(raw); err == nil {
			req.CurrentStep = step
		}
	}
	if raw := r.URL.Query().Get("nocache"); raw == "1" || raw == "true" {
		req.DisableCache = true
	}
	return req
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are out; nothing left to do but note it.
		slog.Default().Error("encode response", "error", err)
	}
}
