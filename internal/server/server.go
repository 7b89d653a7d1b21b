package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/claude/quickfit/internal/auth"
	"github.com/claude/quickfit/internal/quickfit"
	"github.com/go-chi/chi/v5"
)

// UserStore is the account lookup the identity middleware needs.
type UserStore interface {
	GetOrCreateUser(ctx context.Context, login, displayName string) (int, error)
	Ping(ctx context.Context) error
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	app      *quickfit.Service
	accounts *auth.Service
	users    UserStore
	whois    WhoIsClient
	log      *slog.Logger
	router   chi.Router

	now func() time.Time
}

// New creates a new Server with all routes configured. accounts may be nil
// when identity comes from the tailnet only.
func New(app *quickfit.Service, accounts *auth.Service, users UserStore, log *slog.Logger) *Server {
	s := &Server{
		app:      app,
		accounts: accounts,
		users:    users,
		log:      log,
		router:   chi.NewRouter(),
		now:      time.Now,
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SetTailscale switches identity to the tailnet: each request is attributed
// to the peer's login and password sessions are ignored.
func (s *Server) SetTailscale(lc WhoIsClient) {
	s.whois = lc
}

// SetMCP mounts an MCP handler at /mcp. Only identified users reach it.
func (s *Server) SetMCP(h http.Handler) {
	s.router.With(s.identify, requireUser).Handle("/mcp", h)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.identify)

		r.Get("/healthz", s.handleHealth)
		r.Get("/options", s.handleOptions)
		r.Get("/route", s.handleRoute)

		r.Post("/auth/signup", s.handleSignup)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(requireUser)
			r.Get("/me", s.handleMe)
			r.Get("/profile", s.handleGetProfile)
			r.Put("/profile", s.handlePutProfile)
			r.Get("/workout", s.handleWorkout)
			r.Post("/workout/regenerate", s.handleRegenerate)
			r.Post("/workouts/complete", s.handleComplete)
			r.Get("/workouts/history", s.handleHistory)
		})
	})
}
