// Package api serves the goal lists over HTTP for horizon clients.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stefanpenner/horizon/pkg/backend"
	"github.com/stefanpenner/horizon/pkg/store"
)

// maxBodyBytes caps a save request body.
const maxBodyBytes = 1 << 20

// SaveRequest is the body of POST /api/goals.
type SaveRequest struct {
	Goals []store.Goal `json:"goals"`
}

// Options configures a Server. A zero RateLimitRPS disables rate limiting.
type Options struct {
	Logger         *slog.Logger
	RateLimitRPS   float64
	RateLimitBurst int
	// Registry receives the request metrics and backs /metrics. A fresh
	// registry is used when nil.
	Registry *prometheus.Registry
}

// Server is the HTTP API server.
type Server struct {
	backend  backend.Backend
	mux      *http.ServeMux
	handler  http.Handler
	log      *slog.Logger
	limiter  *RateLimiter
	registry *prometheus.Registry
	requests *prometheus.CounterVec
}

// New creates a Server over b.
func New(b backend.Backend, opts Options) *Server {
	s := &Server{
		backend:  b,
		mux:      http.NewServeMux(),
		log:      opts.Logger,
		registry: opts.Registry,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.log = s.log.With("component", "api")
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	s.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "horizon_api_requests_total",
		Help: "HTTP requests served, by method, route and status code.",
	}, []string{"method", "route", "code"})
	s.registry.MustRegister(s.requests)
	s.routes()

	var h http.Handler = s.mux
	if opts.RateLimitRPS > 0 {
		s.limiter = NewRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst)
		h = s.limiter.Middleware(h)
	}
	s.handler = s.instrument(h)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Close releases the rate limiter. The backend is owned by the caller.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Close()
	}
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/goals", s.handleList)
	s.mux.HandleFunc("POST /api/goals", s.handleReplace)
	s.mux.HandleFunc("PUT /api/goals", s.handleReplace)
	s.mux.HandleFunc("POST /api/reset", s.handleReset)
	s.mux.HandleFunc("GET /api/stats", s.handleStats)

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
}

func (s *Server) category(r *http.Request) (store.Category, error) {
	return store.ParseCategory(r.URL.Query().Get("category"))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	c, err := s.category(r)
	if err != nil {
		writeStoreError(w, r, s.log, err)
		return
	}
	goals, err := s.backend.List(r.Context(), c)
	if err != nil {
		writeStoreError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, goals)
}

func (s *Server) handleReplace(w http.ResponseWriter, r *http.Request) {
	c, err := s.category(r)
	if err != nil {
		writeStoreError(w, r, s.log, err)
		return
	}
	var req SaveRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeProblem(w, r, http.StatusBadRequest, store.KindValidation, "invalid JSON body: "+err.Error())
		return
	}
	goals, err := normalize(c, req.Goals)
	if err != nil {
		writeStoreError(w, r, s.log, err)
		return
	}
	if err := s.backend.Replace(r.Context(), c, goals); err != nil {
		writeStoreError(w, r, s.log, err)
		return
	}
	s.log.Info("replaced goals", "category", c, "goals", len(goals))
	writeJSON(w, http.StatusOK, goals)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.Reset(r.Context()); err != nil {
		writeStoreError(w, r, s.log, err)
		return
	}
	s.log.Info("reset all categories")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	out := make([]store.Progress, 0, len(store.Categories))
	for _, c := range store.Categories {
		goals, err := s.backend.List(r.Context(), c)
		if err != nil {
			writeStoreError(w, r, s.log, err)
			return
		}
		p := store.Progress{Category: c, Total: len(goals)}
		for _, g := range goals {
			if g.Completed {
				p.Completed++
			}
		}
		out = append(out, p)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// normalize checks a client list before it is stored: texts must be
// non-empty and unique within the list. Order is rewritten to 0..n-1 in list
// order, the category is forced and missing ids are assigned.
func normalize(c store.Category, goals []store.Goal) ([]store.Goal, error) {
	out := make([]store.Goal, 0, len(goals))
	seen := make(map[string]int, len(goals))
	for i, g := range goals {
		g.Text = strings.TrimSpace(g.Text)
		if g.Text == "" {
			return nil, &store.ValidationError{Field: "goals[" + strconv.Itoa(i) + "].text", Reason: "goal text is empty"}
		}
		key := store.NormalizeText(g.Text)
		if j, dup := seen[key]; dup {
			return nil, &store.ValidationError{
				Field:  "goals[" + strconv.Itoa(i) + "].text",
				Reason: fmt.Sprintf("duplicates goals[%d] %q", j, goals[j].Text),
			}
		}
		seen[key] = i
		if g.ID == "" {
			g.ID = uuid.Must(uuid.NewV7()).String()
		}
		g.Category = c
		g.Order = i
		out = append(out, g)
	}
	return out, nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument counts every request by its matched route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		s.requests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write json", "error", err)
	}
}
