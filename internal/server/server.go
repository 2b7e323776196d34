// Package server wires the HTTP surface: session cookies, upload, chat,
// and operational endpoints.
package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tablechat-io/tablechat/internal/agent"
	"github.com/tablechat-io/tablechat/internal/metrics"
	"github.com/tablechat-io/tablechat/internal/session"
)

// Server holds handler dependencies. Agent is nil when the translator
// credential is absent; /chat then reports the mis-configuration.
type Server struct {
	log           *slog.Logger
	store         *session.Store
	agent         *agent.Agent
	historyWindow int
}

// New creates the server.
func New(log *slog.Logger, store *session.Store, ag *agent.Agent, historyWindow int) *Server {
	if historyWindow <= 0 {
		historyWindow = 4
	}
	return &Server{log: log, store: store, agent: ag, historyWindow: historyWindow}
}

// Router builds the chi handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/", s.handleIndex)
	r.Post("/upload", s.handleUpload)
	r.Post("/chat", s.handleChat)
	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
