package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/claude/quickfit/internal/auth"
	"github.com/claude/quickfit/internal/generator"
	"github.com/claude/quickfit/internal/quickfit"
)

const maxBodyBytes = 1 << 20

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileRequest struct {
	Goal      string   `json:"goal"`
	Equipment []string `json:"equipment"`
	Mood      string   `json:"mood"`
}

type regenerateRequest struct {
	Level string `json:"level"`
}

type completeRequest struct {
	Exercises []generator.Exercise `json:"exercises"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.users.Ping(r.Context()); err != nil {
		s.log.Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Options())
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	dest, err := s.app.Route(r.Context(), UserFromContext(r.Context()))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"redirect": dest})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if !s.passwordAuth(w) {
		return
	}
	var req credentials
	if !decodeJSON(w, r, &req) {
		return
	}
	token, user, err := s.accounts.Signup(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.setSession(w, r, token)
	s.log.Info("account created", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, map[string]any{"user": user, "token": token})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.passwordAuth(w) {
		return
	}
	var req credentials
	if !decodeJSON(w, r, &req) {
		return
	}
	token, user, err := s.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.setSession(w, r, token)
	writeJSON(w, http.StatusOK, map[string]any{"user": user, "token": token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if s.accounts != nil {
		if err := s.accounts.Logout(r.Context(), sessionToken(r)); err != nil {
			s.writeError(w, err)
			return
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, UserFromContext(r.Context()))
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.app.Profile(r.Context(), UserFromContext(r.Context()).ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := s.app.Onboard(r.Context(), UserFromContext(r.Context()).ID, req.Goal, req.Equipment, req.Mood)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleWorkout(w http.ResponseWriter, r *http.Request) {
	level, err := generator.ParseLevel(r.URL.Query().Get("level"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	variant, err := quickfit.ParseVariant(r.URL.Query().Get("variant"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	workout, err := s.app.Plan(r.Context(), UserFromContext(r.Context()).ID, level, variant)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, workout)
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	var req regenerateRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	level, err := generator.ParseLevel(req.Level)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	workout, err := s.app.Regenerate(r.Context(), UserFromContext(r.Context()).ID, level)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, workout)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := s.app.Complete(r.Context(), UserFromContext(r.Context()).ID, req.Exercises, s.now())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a number"})
			return
		}
		limit = parsed
	}
	history, err := s.app.History(r.Context(), UserFromContext(r.Context()).ID, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// passwordAuth reports whether email/password accounts are enabled and
// answers 404 when they are not.
func (s *Server) passwordAuth(w http.ResponseWriter) bool {
	if s.accounts == nil || s.whois != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "password accounts are disabled"})
		return false
	}
	return true
}

func (s *Server) setSession(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  s.now().Add(s.accounts.TTL()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// writeError maps service errors to status codes. Unauthenticated and
// incomplete-profile responses carry the page the client should go to.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var qv *quickfit.ValidationError
	var av *auth.ValidationError
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error(), "redirect": quickfit.RouteLogin})
	case errors.Is(err, quickfit.ErrIncompleteProfile):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error(), "redirect": quickfit.RouteOnboarding})
	case errors.As(err, &qv), errors.As(err, &av):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
	case errors.Is(err, auth.ErrEmailTaken):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, quickfit.ErrWriteFailed):
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "Failed to save workout. Please try again."})
	default:
		s.log.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
