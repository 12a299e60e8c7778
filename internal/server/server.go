package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/debugmarathon/apiserver/config"
	"github.com/debugmarathon/apiserver/internal/auth"
	"github.com/debugmarathon/apiserver/internal/db"
	"github.com/debugmarathon/apiserver/internal/events"
	"github.com/debugmarathon/apiserver/internal/handlers"
	"github.com/debugmarathon/apiserver/internal/logging"
	"github.com/debugmarathon/apiserver/internal/metrics"
	"github.com/debugmarathon/apiserver/internal/mq"
	"github.com/debugmarathon/apiserver/internal/services"
	"github.com/debugmarathon/apiserver/internal/store"
)

const requestTimeout = 60 * time.Second

// Server wraps the HTTP server, router and the resources it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	logger     *slog.Logger

	db         *sql.DB
	limiter    *auth.RateLimiter
	dispatcher *events.Dispatcher
	queue      *mq.MQ
}

// RouterDeps holds what NewRouter mounts.
type RouterDeps struct {
	Gate     *services.AccessGate
	Sessions *services.SessionResolver
	Gatherer prometheus.Gatherer
	Options  handlers.Options
}

// NewRouter builds the HTTP routes with the standard middleware stack.
func NewRouter(deps RouterDeps) *chi.Mux {
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		logging.RequestLogger(deps.Options.Logger),
		middleware.Recoverer,
		middleware.Timeout(requestTimeout),
		handlers.SecurityHeaders,
	)

	router.Get("/healthz", handlers.Healthz)
	if deps.Gatherer != nil {
		router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	router.Route("/api", func(r chi.Router) {
		r.Get("/health", handlers.Healthz)
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, deps.Gate, deps.Sessions, deps.Options)
		})
	})

	return router
}

// New connects to the database and event backend and wires the access
// control services into an HTTP server.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	secret, generated, err := auth.ResolveSecret(cfg.Auth.SecretKey, cfg.IsProduction())
	if err != nil {
		return nil, err
	}
	if generated {
		logger.Warn("SECRET_KEY not set, using a random key; sessions will not survive a restart")
	}
	tokens, err := auth.NewTokenService(secret, cfg.Auth.TokenTTL())
	if err != nil {
		return nil, err
	}

	dbConn, err := db.Open(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	backend, err := mq.Open(ctx, cfg.Events, logger)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("open events backend: %w", err)
	}
	queue := mq.New(backend)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics.RegisterMetrics(registry)

	limiter := auth.NewRateLimiter(auth.RateLimiterConfig{
		Enabled:         cfg.RateLimit.Enabled,
		MaxAttempts:     cfg.RateLimit.LoginAttempts,
		Window:          cfg.RateLimit.Window(),
		CleanupInterval: cfg.RateLimit.CleanupInterval,
		Registerer:      registry,
	})

	dispatcher := events.NewDispatcher(events.DispatcherConfig{
		QueueSize:   cfg.Events.QueueSize,
		TaskTimeout: cfg.Events.TaskTimeout,
	}, logger)

	userRepo := store.NewUserRepository(dbConn)
	gate := services.NewAccessGate(services.AccessGateDeps{
		Users:      userRepo,
		Contests:   store.NewContestRepository(dbConn),
		Shortlist:  store.NewShortlistRepository(dbConn),
		Proctoring: store.NewProctoringRepository(dbConn),
		Events:     events.NewPublisher(queue),
		Tasks:      dispatcher,
		Passwords:  auth.NewPasswordVerifier(),
		Limiter:    limiter,
		Tokens:     tokens,
		Logger:     logger,
	})
	sessions := services.NewSessionResolver(userRepo, tokens)

	router := NewRouter(RouterDeps{
		Gate:     gate,
		Sessions: sessions,
		Gatherer: registry,
		Options:  handlers.Options{Debug: cfg.Debug, Logger: logger},
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: requestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		logger:     logger,
		db:         dbConn,
		limiter:    limiter,
		dispatcher: dispatcher,
		queue:      queue,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones, drains
// pending background tasks and releases the database and event backend.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)

	s.dispatcher.Close()
	s.limiter.Close()
	if qerr := s.queue.Close(); qerr != nil {
		err = errors.Join(err, qerr)
	}
	if s.db != nil {
		if derr := s.db.Close(); derr != nil {
			err = errors.Join(err, derr)
		}
	}
	return err
}
