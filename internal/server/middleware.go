package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/claude/quickfit/internal/auth"
	"github.com/claude/quickfit/internal/models"
	"tailscale.com/client/tailscale/apitype"
)

// SessionCookie carries the session token for browser clients.
const SessionCookie = "quickfit_session"

type contextKey int

const userKey contextKey = iota

// WhoIsClient resolves a tailnet peer address to its owner.
// *local.Client from tsnet satisfies it.
type WhoIsClient interface {
	WhoIs(ctx context.Context, remoteAddr string) (*apitype.WhoIsResponse, error)
}

// UserFromContext returns the user attached by the identity middleware, or
// nil for anonymous requests.
func UserFromContext(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey).(*models.User)
	return u
}

func withUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// sessionToken reads the bearer token or session cookie.
func sessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// identify attaches the current user to the request context when one can be
// resolved. Missing or expired credentials leave the request anonymous for
// requireUser to reject; store failures answer 500.
func (s *Server) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := s.resolveUser(r)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if user != nil {
			r = r.WithContext(withUser(r.Context(), user))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) resolveUser(r *http.Request) (*models.User, error) {
	if s.whois != nil {
		return s.tailscaleUser(r)
	}
	token := sessionToken(r)
	if token == "" || s.accounts == nil {
		return nil, nil
	}
	user, err := s.accounts.Authenticate(r.Context(), token)
	if errors.Is(err, auth.ErrUnauthenticated) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("authenticating session: %w", err)
	}
	return user, nil
}

func (s *Server) tailscaleUser(r *http.Request) (*models.User, error) {
	who, err := s.whois.WhoIs(r.Context(), r.RemoteAddr)
	if err != nil {
		s.log.Warn("tailscale whois failed", "remote", r.RemoteAddr, "error", err)
		return nil, nil
	}
	if who == nil || who.UserProfile == nil || who.UserProfile.LoginName == "" {
		return nil, nil
	}

	login := who.UserProfile.LoginName
	display := who.UserProfile.DisplayName
	id, err := s.users.GetOrCreateUser(r.Context(), login, display)
	if err != nil {
		return nil, fmt.Errorf("resolving tailscale user %s: %w", login, err)
	}
	return &models.User{ID: id, Login: login, DisplayName: display}, nil
}

// requireUser rejects anonymous requests with a redirect to the login page.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFromContext(r.Context()) == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error":    "not logged in",
				"redirect": "/login",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequestLogging returns middleware that logs each request.
func RequestLogging(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			log.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration", time.Since(start).String(),
			)
		})
	}
}

// CORS adds permissive CORS headers for local development.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusWriter wraps ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush lets streaming responses through the logging wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
