// Package server is the composition root of the query service: it loads the
// filtered snapshot, wires services, handlers and middleware, and owns the
// HTTP server lifecycle.
//
// Route structure:
//
//	GET  /                 landing page
//	GET  /favicon.ico      204
//	GET  /healthz          liveness and index size
//	GET  /metrics          Prometheus exposition
//	GET  /users, /users/   raw snapshot, public
//	GET  /users/search?q=  filtered search, auth
//	GET  /users/{login}    filtered detail, auth
//	POST /auth/token       bearer token for Basic credentials
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/sakif/github-users/internal/apperror"
	"github.com/sakif/github-users/internal/auth"
	"github.com/sakif/github-users/internal/config"
	"github.com/sakif/github-users/internal/handler"
	"github.com/sakif/github-users/internal/metrics"
	"github.com/sakif/github-users/internal/middleware"
	"github.com/sakif/github-users/internal/model"
	"github.com/sakif/github-users/internal/service"
	"github.com/sakif/github-users/internal/snapshot"
)

// ShutdownTimeout bounds how long in-flight requests may run after a signal.
const ShutdownTimeout = 30 * time.Second

// Server represents the HTTP server and all its dependencies.
type Server struct {
	router   *chi.Mux
	config   *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	users    *service.UserService
}

// New builds the server from cfg.
//
// The filtered snapshot is loaded once here. A missing file starts the
// service with an empty index and a warning; a malformed one is an error.
// The raw snapshot is not read until the first list request.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if err := cfg.RequireAccessToken(); err != nil {
		return nil, err
	}

	store := snapshot.NewStore(cfg.DataDir)
	index, err := loadIndex(store, cfg.FilteredFile, logger)
	if err != nil {
		return nil, err
	}

	var tokens *auth.TokenService
	if cfg.JWTSecret != "" {
		tokens, err = auth.NewTokenService(cfg.JWTSecret)
		if err != nil {
			return nil, fmt.Errorf("configuring bearer tokens: %w", err)
		}
	} else {
		logger.Info("jwt_secret not set, bearer tokens disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		registry: registry,
		users:    service.NewUserService(store, cfg.RawFile, index, logger),
	}

	if err := s.setupRoutes(auth.NewCredentials(cfg.APIUsername, cfg.APIAccessToken), tokens); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

func loadIndex(store *snapshot.Store, name string, logger *slog.Logger) (*snapshot.Index, error) {
	records, err := store.Load(name)
	switch {
	case err == nil:
	case errors.Is(err, apperror.ErrNotFound):
		logger.Warn("filtered snapshot missing, search and detail will be empty",
			slog.String("file", store.Path(name)),
		)
		records = []model.UserRecord{}
	default:
		return nil, fmt.Errorf("loading filtered snapshot: %w", err)
	}

	index := snapshot.NewIndex(records)
	logger.Info("filtered snapshot loaded",
		slog.String("file", store.Path(name)),
		slog.Int("users", index.Len()),
	)
	return index, nil
}

// setupRoutes configures all middleware and route handlers.
//
// Middleware order: request id and real IP first so the logger sees them,
// then logging and metrics, then Recoverer so a panic is logged as a 500.
func (s *Server) setupRoutes(creds *auth.Credentials, tokens *auth.TokenService) error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics(metrics.NewHTTP(s.registry)))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{handler.SnapshotHeader},
		MaxAge:         300,
	}))

	homeHandler, err := handler.NewHomeHandler(s.users, s.logger)
	if err != nil {
		return fmt.Errorf("creating home handler: %w", err)
	}
	s.router.Get("/", homeHandler.HandleHome)
	s.router.Get("/favicon.ico", homeHandler.HandleFavicon)
	s.router.Get("/healthz", homeHandler.HandleHealth)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	userHandler := handler.NewUserHandler(s.users, s.config.ListErrorsAsOK, s.logger)
	s.router.Get("/users", userHandler.HandleList)
	s.router.Get("/users/", userHandler.HandleList)
	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(creds, tokens))
		r.Get("/users/search", userHandler.HandleSearch)
		r.Get("/users/{login}", userHandler.HandleDetail)
	})

	tokenHandler := handler.NewTokenHandler(tokens, s.logger)
	s.router.With(auth.RequireAuth(creds, nil)).Post("/auth/token", tokenHandler.HandleIssue)

	return nil
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until SIGINT or SIGTERM.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Serve(ctx)
}

// Serve listens on the configured address until ctx is done, then drains
// in-flight requests for up to ShutdownTimeout.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("server starting",
			slog.String("addr", s.config.Addr),
			slog.String("raw_snapshot", s.config.RawFile),
			slog.String("filtered_snapshot", s.config.FilteredFile),
			slog.Int("users", s.users.Count()),
		)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Also runs when ListenAndServe fails, since that cancels gctx.
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
		return nil
	})

	return g.Wait()
}
