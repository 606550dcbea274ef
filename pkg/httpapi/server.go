// Package httpapi is the controller's read-mostly HTTP surface: current
// health, decision history, the active day plan, the learned usage
// profile, and a single OIDC-gated pause/resume toggle. It is not the
// inverter-command transport spec.md calls out of scope — that remains a
// log-only sink in pkg/engine; this is observability plus one operator
// knob, adapted from the teacher's pkg/server.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/api/idtoken"

	"github.com/jameshartig/gridpilot/pkg/health"
	"github.com/jameshartig/gridpilot/pkg/storage"
	"github.com/jameshartig/gridpilot/pkg/types"
)

type contextKey string

const (
	authTokenCookie           = "gridpilot_auth_token"
	emailContextKey contextKey = "email"
)

// tokenValidatorFunc matches idtoken.Validate's signature so tests can
// substitute a fake validator without hitting Google's certificate
// endpoint.
type tokenValidatorFunc func(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)

// Engine is the subset of engine.Engine the read API depends on.
type Engine interface {
	CurrentPlan() types.DayPlan
	CurrentProfile() types.UsageProfile
	Health() *health.Monitor
}

// Server serves the read API.
type Server struct {
	store          storage.Store
	engine         Engine
	listenAddr     string
	oidcAudience   string
	adminEmails    []string
	bypassAuth     bool
	tokenValidator tokenValidatorFunc

	httpServer *http.Server
}

// Configured builds a Server wired to the engine's published state and
// the shared storage backend, following the teacher's
// server.Configured(u, e, s) shape.
func Configured(store storage.Store, engine Engine, cfg types.Config) *Server {
	return &Server{
		store:          store,
		engine:         engine,
		listenAddr:     cfg.ListenAddr,
		oidcAudience:   cfg.OIDCAudience,
		adminEmails:    cfg.AdminEmails,
		bypassAuth:     cfg.BypassAuth,
		tokenValidator: idtoken.Validate,
	}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/decisions", s.handleDecisions)
	mux.HandleFunc("GET /api/decisions/value", s.handleValueSummary)
	mux.HandleFunc("GET /api/plan", s.handlePlan)
	mux.HandleFunc("GET /api/profile", s.handleProfile)
	mux.HandleFunc("GET /api/auth/status", s.handleAuthStatus)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("POST /api/settings", s.handleUpdateSettings)
	return s.authMiddleware(mux)
}

// Run starts the HTTP server and blocks until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    s.listenAddr,
		Handler: s.routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "read api listening", slog.String("addr", s.listenAddr))
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
