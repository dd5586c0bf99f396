// Package httpapi exposes the game over HTTP: documentation and health
// routes, the scenario catalog, and the POST turn endpoints players
// drive. The Portuguese field names and labels are the wire contract.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/laredonunes/ecoquest-api/clock"
	"github.com/laredonunes/ecoquest-api/config"
	"github.com/laredonunes/ecoquest-api/engine"
	"github.com/laredonunes/ecoquest-api/ratelimit"
	"github.com/laredonunes/ecoquest-api/scenario"
)

// Version is the wire-visible API version.
const Version = "2.0.0"

// Server serves the EcoQuest API. Construct with New, drive with
// Start, stop with Shutdown.
type Server struct {
	cfg            config.ServerConfig
	eng            *engine.Engine
	registry       *scenario.Registry
	inbound        *ratelimit.Inbound
	clk            clock.Clock
	logger         *slog.Logger
	groqConfigured bool

	httpSrv *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithClock sets the clock. Tests inject clock.Fake.
func WithClock(clk clock.Clock) Option {
	return func(s *Server) {
		s.clk = clk
	}
}

// WithGroqConfigured records whether an upstream API key is present,
// for the health endpoint.
func WithGroqConfigured(configured bool) Option {
	return func(s *Server) {
		s.groqConfigured = configured
	}
}

// New creates a Server routing turns for the registry's scenarios
// through eng, with inbound admission control per player identity.
func New(cfg config.ServerConfig, eng *engine.Engine, registry *scenario.Registry, inbound *ratelimit.Inbound, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		eng:      eng,
		registry: registry,
		inbound:  inbound,
		clk:      clock.Real(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.httpSrv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler returns the full route tree with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleDocs)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/cenarios", s.handleListScenarios)
	mux.HandleFunc("/api/", s.handleTurn)
	mux.Handle("/metrics", promhttp.Handler())

	return Chain(mux, Logging(s.logger), Recovery(s.logger), CORS())
}

// Start begins serving and blocks until the listener stops. A clean
// Shutdown is not an error.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", "addr", s.cfg.Addr)
	if err := s.httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
