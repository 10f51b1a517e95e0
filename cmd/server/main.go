package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"

	"github.com/mkarvelas/krino/actions"
	"github.com/mkarvelas/krino/auth"
	"github.com/mkarvelas/krino/engine"
	"github.com/mkarvelas/krino/internal/logger"
	"github.com/mkarvelas/krino/internal/metrics"
	"github.com/mkarvelas/krino/ruleset"
	"github.com/mkarvelas/krino/tenants"
)

type Server struct {
	store   tenants.Store
	engine  *engine.Engine
	runner  *actions.Runner
	auth    *auth.Manager
	metrics *metrics.Metrics
	logger  *slog.Logger
	router  *chi.Mux
}

func NewServer(
	store tenants.Store,
	eng *engine.Engine,
	runner *actions.Runner,
	authManager *auth.Manager,
	m *metrics.Metrics,
	log *slog.Logger,
) *Server {
	s := &Server{
		store:   store,
		engine:  eng,
		runner:  runner,
		auth:    authManager,
		metrics: m,
		logger:  log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/api/v1/health", s.handleHealth)
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/signup", s.handleSignup)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.requireUser)

			r.Get("/auth/me", s.handleMe)

			r.Get("/tenants", s.handleListTenants)
			r.Post("/tenants", s.handleCreateTenant)

			r.Route("/tenants/{tenantId}", func(r chi.Router) {
				r.Get("/", s.handleGetTenant)
				r.Post("/decision", s.handleDecision)

				r.Get("/documents", s.handleListDocuments)
				r.Post("/documents", s.handleCreateDocument)
				r.Delete("/documents/{documentId}", s.handleDeleteDocument)
			})
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func main() {
	log := logger.Setup()

	rulesetsDir := envOr("RULESETS_DIR", "rulesets")
	rulesetStore, err := ruleset.NewFileStore(rulesetsDir, log)
	if err != nil {
		log.Error("failed to create ruleset store", "error", err)
		os.Exit(1)
	}

	debug := strings.EqualFold(os.Getenv("DECISION_DEBUG"), "true")
	eng, err := engine.New(rulesetStore, engine.WithLogger(log), engine.WithDebug(debug))
	if err != nil {
		log.Error("failed to create decision engine", "error", err)
		os.Exit(1)
	}

	registry := actions.NewRegistry()
	actions.RegisterBuiltins(registry, actions.NewStaticDataSource(actions.DemoDataset()))
	runner := actions.NewRunner(registry, log)

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "change-me-dev-secret"
		log.Warn("JWT_SECRET not set, using the development secret")
	}
	ttl := auth.DefaultTokenTTL
	if raw := os.Getenv("TOKEN_TTL_MINUTES"); raw != "" {
		if minutes, err := strconv.Atoi(raw); err == nil && minutes > 0 {
			ttl = time.Duration(minutes) * time.Minute
		}
	}
	authManager, err := auth.NewManager(secret, ttl)
	if err != nil {
		log.Error("failed to create auth manager", "error", err)
		os.Exit(1)
	}

	store, closeStore, err := openStore(log)
	if err != nil {
		log.Error("failed to open tenant store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	server := NewServer(store, eng, runner, authManager, metrics.New(), log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Edited ruleset files take effect without a restart.
	watcher, err := ruleset.NewWatcher(rulesetStore, log)
	if err != nil {
		log.Warn("ruleset watcher disabled", "error", err)
	} else {
		go func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Warn("ruleset watcher stopped", "error", err)
			}
		}()
	}

	port := envOr("PORT", "8080")
	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", port, "rulesets_dir", rulesetsDir)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", "error", err)
	}
	if err := logger.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "logger shutdown error: %v\n", err)
	}

	log.Info("server stopped")
}

// openStore selects Postgres when DATABASE_URL is set, otherwise the
// in-memory store for local runs.
func openStore(log *slog.Logger) (tenants.Store, func(), error) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Warn("DATABASE_URL not set, tenants are kept in memory")
		return tenants.NewInMemoryStore(), func() {}, nil
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}

	return tenants.NewPostgresStore(db), func() { db.Close() }, nil
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
