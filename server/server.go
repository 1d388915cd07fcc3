package server

import (
	"context"
	"image"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/siherrmann/handbot/core/router"
	"github.com/siherrmann/handbot/helper"
	"github.com/siherrmann/handbot/model"
)

// Service is the application behind the HTTP endpoints
type Service interface {
	Ask(ctx context.Context, sender string, question string) router.Reply
	Chat(ctx context.Context, sender string, question string) (*model.ChatAnswer, error)
	Marketing(ctx context.Context, idea string) (string, error)
	AnalyzeAd(ctx context.Context, img image.Image) (*model.AdAnalysis, error)
	History(ctx context.Context, sender string, limit int) ([]*model.LogEntry, error)
	CategoryCounts(ctx context.Context) (map[string]int, error)
	Ingest(ctx context.Context) (*model.IngestResult, error)
	Health(ctx context.Context) model.Health
}

// Server manages the HTTP server and routes
type Server struct {
	service  Service
	config   helper.ServerConfiguration
	metrics  *Metrics
	validate *validator.Validate
	mux      *http.ServeMux
	server   *http.Server
	log      *slog.Logger
}

// New creates a server for the service
func New(service Service, config helper.ServerConfiguration, logger *slog.Logger) *Server {
	s := &Server{
		service:  service,
		config:   config,
		metrics:  NewMetrics(),
		validate: validator.New(),
		log:      logger,
	}

	s.mux = s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      s.withMiddleware(s.mux),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the routes wrapped with the middleware chain
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Metrics returns the server metrics
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Start listens until Shutdown is called
func (s *Server) Start() error {
	s.log.Info("HTTP server starting", "address", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return helper.NewError("serve http", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return helper.NewError("shutdown http server", err)
	}

	s.log.Info("HTTP server stopped")
	return nil
}
