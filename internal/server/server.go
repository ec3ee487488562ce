// ABOUTME: Server orchestrator wiring store, credential, token, policy and audit components
// ABOUTME: Manages the HTTP listener lifecycle with graceful shutdown

package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/2389/warden/internal/auth"
	"github.com/2389/warden/internal/config"
	"github.com/2389/warden/internal/store"
)

// Server orchestrates the warden authentication service.
// It owns the SQLite store, the auth components built on top of it,
// and the HTTP server that exposes them.
type Server struct {
	config *config.Config
	logger *slog.Logger

	store  store.Store
	creds  *auth.CredentialStore
	tokens *auth.TokenService
	policy *auth.SecurityPolicy
	audit  *auth.Recorder
	guard  *auth.Guard

	validate   *validator.Validate
	httpServer *http.Server
}

// initStore creates the backing store, honoring the WARDEN_DB_PATH override.
func initStore(cfg *config.Config) (store.Store, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("WARDEN_DB_PATH"); envPath != "" {
		dbPath = envPath
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// New creates a Server from validated configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	st, err := initStore(cfg)
	if err != nil {
		return nil, err
	}
	return NewWithStore(cfg, st, logger)
}

// NewWithStore creates a Server on an existing store. The server takes
// ownership: Shutdown closes the store.
func NewWithStore(cfg *config.Config, st store.Store, logger *slog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenService([]byte(cfg.Auth.JWTSecret), cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("initializing token service: %w", err)
	}

	cost := cfg.Auth.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	creds := auth.NewCredentialStore(st, logger, cost, cfg.Auth.MaxConcurrentHashes)
	policy := auth.NewSecurityPolicy(st, logger)
	recorder := auth.NewRecorder(st, logger)
	guard := auth.NewGuard(policy, tokens, logger)

	s := &Server{
		config:   cfg,
		logger:   logger,
		store:    st,
		creds:    creds,
		tokens:   tokens,
		policy:   policy,
		audit:    recorder,
		guard:    guard,
		validate: validator.New(),
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// routes builds the HTTP router.
//
// The credential endpoints (login, refresh, setup, logout) sit behind a
// per-IP rate limit and outside the guard: they are how a caller obtains
// an identity in the first place. Status is public by contract. The
// mutating endpoints (settings, register, password) go through the guard,
// which rejects anonymous callers whenever enforcement is on.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(httprate.Limit(
				s.config.RateLimit.Requests,
				s.config.RateLimit.Window,
				httprate.WithKeyFuncs(httprate.KeyByIP),
			))
			r.Post("/login", s.handleLogin)
			r.Post("/refresh", s.handleRefresh)
			r.Post("/setup", s.handleSetup)
			r.Post("/logout", s.handleLogout)
		})

		r.Get("/status", s.handleStatus)

		r.Group(func(r chi.Router) {
			r.Use(s.guard.Middleware)
			r.Put("/settings", s.handleSettings)
			r.Post("/register", s.handleRegister)
			r.Put("/password", s.handleChangePassword)
		})
	})

	return r
}

// Handler exposes the router for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run starts the HTTP server and blocks until the context is canceled or
// the server fails. Shutdown is always attempted before returning.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.config.Server.HTTPAddr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := s.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is already canceled.
func (s *Server) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}

// Shutdown stops the HTTP server, drains pending audit writes and closes
// the store.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}

	s.audit.Flush()

	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}
