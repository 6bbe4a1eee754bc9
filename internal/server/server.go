// Package server exposes the bridge's link state and latest frame over a
// small local HTTP API.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hwmonitor/bridge/internal/domain"
	"github.com/hwmonitor/bridge/internal/link"
)

// StatusSource is what the API reads from. *link.StatusBoard satisfies it.
type StatusSource interface {
	Snapshot() link.Status
	LastFrame() (domain.Frame, bool)
}

type Server struct {
	http   *http.Server
	logger *slog.Logger
}

// New builds the server. Nothing listens until Start.
func New(addr string, source StatusSource, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(RecoveryMiddleware(logger))
	router.Use(LoggingMiddleware(logger, source, "/ping"))

	NewHandler(source).RegisterRoutes(router)

	return &Server{
		http: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

func (s *Server) Addr() string {
	return s.http.Addr
}

// Handler returns the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start blocks serving requests. It returns nil after Shutdown.
func (s *Server) Start() error {
	s.logger.Info("status server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
