// Package httpapi exposes retrieval and ingestion over HTTP. Clients
// exchange credentials for a bearer token, then query context and
// trigger reindex runs with it.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/tessellate-ai/contextd/internal/adapters/driven/authz"
	"github.com/tessellate-ai/contextd/internal/core/ports/driving"
	"github.com/tessellate-ai/contextd/internal/logger"
)

// Config holds server configuration.
type Config struct {
	// Addr is the listen address, e.g. ":8600".
	Addr string

	// AllowedOrigins is the CORS allowlist; ["*"] allows everything.
	AllowedOrigins []string

	// TokenTTL is echoed to clients as expires_in.
	TokenTTL time.Duration
}

// Server wires the context engine and ingestor behind the HTTP API.
type Server struct {
	cfg        Config
	engine     driving.ContextService
	ingestor   driving.Ingestor
	provider   *authz.Provider
	issuer     *authz.TokenIssuer
	router     chi.Router
	httpServer *http.Server
}

// New creates a server with all dependencies.
func New(cfg Config, engine driving.ContextService, ingestor driving.Ingestor,
	provider *authz.Provider, issuer *authz.TokenIssuer) *Server {
	s := &Server{
		cfg:      cfg,
		engine:   engine,
		ingestor: ingestor,
		provider: provider,
		issuer:   issuer,
	}
	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Post("/api/token", s.handleToken)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Post("/api/context", s.handleContext)
		r.Post("/api/reindex/{source}", s.handleReindex)
	})

	return r
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start begins listening on the configured address and blocks until
// the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("http api listening on %s", s.cfg.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
