package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/davidbz/runrelay/internal/config"
	"github.com/davidbz/runrelay/internal/http/middleware"
	"github.com/davidbz/runrelay/internal/observability"
)

// Server represents the HTTP server.
type Server struct {
	config      config.ServerConfig
	handler     *Handler
	middlewares middleware.Middleware
	auth        middleware.Middleware
	srv         *http.Server
}

// NewServer creates a new HTTP server.
func NewServer(
	cfg *config.ServerConfig,
	authCfg *config.AuthConfig,
	handler *Handler,
	middlewares middleware.Middleware,
) *Server {
	if authCfg == nil || authCfg.SecretToken == "" {
		observability.FromContext(context.Background()).
			Warn("API_SECRET_TOKEN is empty, /v1 routes are not authenticated")
	}

	s := &Server{
		config:      *cfg,
		handler:     handler,
		middlewares: middlewares,
		auth:        middleware.BearerAuth(authCfg),
		srv:         nil,
	}

	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.Routes(),
		ReadTimeout:       time.Duration(cfg.ReadTimeout) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.WriteTimeout) * time.Second,
	}

	return s
}

// Routes builds the router with every route and middleware.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(s.middlewares)

	r.Get("/", s.handler.HandleRoot)
	r.Get("/health", s.handler.HandleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.auth)

		r.Get("/models", s.handler.HandleListModels)
		r.Get("/models/{model}", s.handler.HandleGetModel)
		r.Post("/chat/completions", s.handler.HandleChatCompletion)
	})

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	observability.FromContext(context.Background()).Info("starting HTTP server", observability.Int("port", s.config.Port))

	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	observability.FromContext(ctx).Info("shutting down HTTP server")

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}
