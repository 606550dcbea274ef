package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/api/idtoken"
)

// emailFromPayload extracts the operator's email from a validated OIDC
// payload, the claim both the cookie middleware and /api/auth/login rely
// on to decide admin access to the one operator knob this domain exposes
// (pausing the controller via /api/settings).
func emailFromPayload(payload *idtoken.Payload) (string, bool) {
	email, ok := payload.Claims["email"].(string)
	return email, ok
}

// authMiddleware resolves the session cookie into an operator email on
// the request context, if present. A controller with no admins
// configured still serves every route — the gate only bites on the
// settings-write handler, not on reading plan/decision state.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(authTokenCookie)
		if errors.Is(err, http.ErrNoCookie) {
			next.ServeHTTP(w, r)
			return
		}
		if err != nil {
			slog.WarnContext(r.Context(), "malformed session cookie", slog.Any("error", err))
			s.clearCookie(w)
			http.Error(w, "invalid cookies", http.StatusBadRequest)
			return
		}

		payload, err := s.tokenValidator(r.Context(), cookie.Value, s.oidcAudience)
		if err != nil {
			slog.WarnContext(r.Context(), "session token failed validation", slog.Any("error", err))
			s.clearCookie(w)
			http.Error(w, "invalid cookies", http.StatusBadRequest)
			return
		}

		email, ok := emailFromPayload(payload)
		if !ok {
			slog.WarnContext(r.Context(), "oidc payload missing email claim")
			s.clearCookie(w)
			http.Error(w, "invalid oidc claims", http.StatusBadRequest)
			return
		}

		ctx := context.WithValue(r.Context(), emailContextKey, email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// handleLogin validates a Google ID token and, on success, starts a
// session by setting a cookie that expires with the token itself. The
// token is never stored server-side; every request re-validates it.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	payload, err := s.tokenValidator(r.Context(), req.Token, s.oidcAudience)
	if err != nil {
		slog.WarnContext(r.Context(), "login rejected: token failed validation", slog.Any("error", err))
		http.Error(w, "invalid id token", http.StatusUnauthorized)
		return
	}

	email, ok := emailFromPayload(payload)
	if !ok {
		slog.WarnContext(r.Context(), "login rejected: oidc payload missing email claim")
		http.Error(w, "invalid oidc claims", http.StatusUnauthorized)
		return
	}

	slog.InfoContext(r.Context(), "operator session started",
		slog.String("email", email), slog.Bool("admin", s.isAdmin(email)))

	http.SetCookie(w, &http.Cookie{
		Name:     authTokenCookie,
		Value:    req.Token,
		Expires:  time.Unix(payload.Expires, 0),
		HttpOnly: true,
		Secure:   true,
		Path:     "/",
		SameSite: http.SameSiteStrictMode,
	})

	w.WriteHeader(http.StatusOK)
}

// clearCookie expires the session cookie immediately, used both when
// logging out and when a presented cookie fails validation.
func (s *Server) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     authTokenCookie,
		Value:    "",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   true,
		Path:     "/",
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if email, ok := r.Context().Value(emailContextKey).(string); ok {
		slog.InfoContext(r.Context(), "operator session ended", slog.String("email", email))
	}
	s.clearCookie(w)
	w.WriteHeader(http.StatusOK)
}

// authStatusResponse tells the dashboard whether the current session can
// flip RuntimeSettings.Pause, so it can show or hide that control.
type authStatusResponse struct {
	LoggedIn     bool   `json:"loggedIn"`
	IsAdmin      bool   `json:"isAdmin"`
	Email        string `json:"email"`
	AuthRequired bool   `json:"authRequired"`
	ClientID     string `json:"clientID"`
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	email, ok := r.Context().Value(emailContextKey).(string)
	loggedIn := ok && email != ""
	isAdmin := loggedIn && s.isAdmin(email)

	// bypassAuth is for local development against a file-backed store
	// with no OIDC audience configured; it always reports an admin
	// session so the settings toggle is exercisable without Google auth.
	if s.bypassAuth {
		loggedIn = true
		isAdmin = true
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(authStatusResponse{
		LoggedIn:     loggedIn,
		IsAdmin:      isAdmin,
		Email:        email,
		AuthRequired: s.oidcAudience != "",
		ClientID:     s.oidcAudience,
	}); err != nil {
		panic(http.ErrAbortHandler)
	}
}

// isAdmin checks the operator's email against the configured allowlist,
// the only authorization gridpilot does beyond "is this a valid session".
func (s *Server) isAdmin(email string) bool {
	for _, admin := range s.adminEmails {
		if email == admin {
			return true
		}
	}
	return false
}
