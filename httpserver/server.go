// Package httpserver provides the HTTP API for code execution.
//
// The httpserver package exposes the execution sandbox over a small JSON
// API: POST /v1/execute runs a snippet synchronously and GET /healthz
// reports liveness. Request validation and timeout clamping happen here,
// before anything reaches the sandbox core.
package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/isdmx/wasibox/config"
	"github.com/isdmx/wasibox/sandbox"
)

// Server is the HTTP server for the execution API
type Server struct {
	config   *config.Config
	logger   *zap.Logger
	executor sandbox.Executor
	router   chi.Router
	http     *http.Server
}

// New creates a new Server
func New(cfg *config.Config, logger *zap.Logger, executor sandbox.Executor) *Server {
	s := &Server{
		config:   cfg,
		logger:   logger,
		executor: executor,
		router:   chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)

	r.Route("/v1", func(r chi.Router) {
		r.Use(jsonContentType)
		r.Post("/execute", s.handleExecute)
	})
}

// jsonContentType sets Content-Type to application/json for API routes
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Handler returns the configured router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening on the configured port
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Server.HTTPPort)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("starting HTTP server", zap.String("addr", addr))
	return s.http.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	s.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}
