// Package web serves the HTTP API for submitting events and inspecting
// jobs, plus health and metrics endpoints.
package web

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/example/lintci/internal/observability"
	"github.com/example/lintci/internal/service"
)

// Server is the web HTTP server
type Server struct {
	addr     string
	handlers *Handlers
	mux      *http.ServeMux
	srv      *http.Server
}

// NewServer creates a new web server. metrics may be nil, in which case
// the /metrics endpoint reports an empty snapshot.
func NewServer(addr string, jobs *service.JobService, metrics *observability.Metrics) *Server {
	s := &Server{
		addr:     addr,
		handlers: NewHandlers(jobs),
		mux:      http.NewServeMux(),
	}
	s.setupRoutes(metrics)
	return s
}

func (s *Server) setupRoutes(metrics *observability.Metrics) {
	s.mux.HandleFunc("/api/events", s.corsMiddleware(s.routeEvents))
	// Trailing slash enables prefix matching for all /api/jobs/* paths
	s.mux.HandleFunc("/api/jobs", s.corsMiddleware(s.routeJobs))
	s.mux.HandleFunc("/api/jobs/", s.corsMiddleware(s.routeJobs))
	s.mux.HandleFunc("/healthz", s.handlers.Healthz)

	if metrics != nil {
		s.mux.Handle("/metrics", metrics)
	} else {
		s.mux.Handle("/metrics", observability.NewMetrics())
	}
}

// routeEvents routes /api/events requests
func (s *Server) routeEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.handlers.SubmitEvent(w, r)
}

// routeJobs routes requests to the appropriate handler based on the path
func (s *Server) routeJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/jobs")
	switch {
	case path == "" || path == "/":
		// GET /api/jobs - list jobs
		s.handlers.ListJobs(w, r)

	case strings.HasSuffix(path, "/log"):
		// GET /api/jobs/:id/log - plain-text combined log
		s.handlers.GetJobLog(w, r)

	default:
		// GET /api/jobs/:id - one job with its steps
		s.handlers.GetJob(w, r)
	}
}

// corsMiddleware adds CORS headers to responses
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// Start starts the HTTP server and blocks until it exits.
func (s *Server) Start() error {
	log.Printf("[web] Starting server on %s", s.addr)
	s.srv = &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.srv.ListenAndServe()
}

// Shutdown gracefully stops a started server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// Handler returns the HTTP handler for the server
func (s *Server) Handler() http.Handler {
	return s.mux
}
