package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ignite/campaign-dispatch/internal/config"
)

// Server represents the API server
type Server struct {
	handler http.Handler
	server  *http.Server
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, h *Handlers) *Server {
	handler := SetupRoutes(h, cfg.CORSOrigins)
	return &Server{
		handler: handler,
		server: &http.Server{
			Addr:    cfg.Addr(),
			Handler: handler,
			// Synchronous sends hold the request open across batch delays,
			// so the write timeout comes from config.
			ReadTimeout:       time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
			ReadHeaderTimeout: 15 * time.Second,
			WriteTimeout:      time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}
}

// ListenAndServe starts the HTTP server. It returns http.ErrServerClosed
// after Shutdown.
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing
func (s *Server) Handler() http.Handler {
	return s.handler
}
