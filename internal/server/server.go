// Package server provides the HTTP server and routing for the portfolio engine.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	historicalhandlers "github.com/blumarkets/hram/internal/modules/historical/handlers"
	ledgerhandlers "github.com/blumarkets/hram/internal/modules/ledger/handlers"
	portfoliohandlers "github.com/blumarkets/hram/internal/modules/portfolio/handlers"
	rebalancinghandlers "github.com/blumarkets/hram/internal/modules/rebalancing/handlers"
	scoringhandlers "github.com/blumarkets/hram/internal/modules/scoring/handlers"
	settingshandlers "github.com/blumarkets/hram/internal/modules/settings/handlers"
	snapshothandlers "github.com/blumarkets/hram/internal/modules/snapshots/handlers"
)

// Config holds server configuration and the handler instances to mount.
type Config struct {
	Log     zerolog.Logger
	Port    int
	DevMode bool
	DataDir string

	Ledger      *ledgerhandlers.Handler
	Settings    *settingshandlers.Handler
	Portfolio   *portfoliohandlers.Handler
	Snapshots   *snapshothandlers.Handler
	Risk        *scoringhandlers.Handler
	Rebalancing *rebalancinghandlers.Handler
	History     *historicalhandlers.Handler
}

// Server is the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	cfg    Config

	systemHandlers *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		cfg:            cfg,
		systemHandlers: NewSystemHandlers(cfg.DataDir, cfg.Log),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.systemHandlers.HandleHealth)

	s.router.Route("/api", func(r chi.Router) {
		s.systemHandlers.RegisterRoutes(r)

		if s.cfg.Ledger != nil {
			s.cfg.Ledger.RegisterRoutes(r)
		}
		if s.cfg.Settings != nil {
			s.cfg.Settings.RegisterRoutes(r)
		}
		if s.cfg.Portfolio != nil {
			s.cfg.Portfolio.RegisterRoutes(r)
		}
		if s.cfg.Snapshots != nil {
			s.cfg.Snapshots.RegisterRoutes(r)
		}
		if s.cfg.Risk != nil {
			s.cfg.Risk.RegisterRoutes(r)
		}
		if s.cfg.Rebalancing != nil {
			s.cfg.Rebalancing.RegisterRoutes(r)
		}
		if s.cfg.History != nil {
			s.cfg.History.RegisterRoutes(r)
		}
	})
}

// Router exposes the configured router, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
