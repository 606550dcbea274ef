package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/jameshartig/gridpilot/pkg/types"
)

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	settings, err := s.store.LoadSettings(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to get settings", slog.Any("error", err))
		http.Error(w, "failed to get settings", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(settings); err != nil {
		slog.ErrorContext(ctx, "failed to encode settings", slog.Any("error", err))
	}
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !s.bypassAuth {
		if len(s.adminEmails) == 0 {
			http.Error(w, "settings updates are disabled", http.StatusForbidden)
			return
		}

		email, ok := ctx.Value(emailContextKey).(string)
		if !ok || email == "" {
			http.Error(w, "missing authentication", http.StatusUnauthorized)
			return
		}

		if !s.isAdmin(email) {
			slog.WarnContext(ctx, "unauthorized email for settings update", slog.String("email", email))
			http.Error(w, "unauthorized email", http.StatusForbidden)
			return
		}
	}

	var newSettings types.RuntimeSettings
	if err := json.NewDecoder(r.Body).Decode(&newSettings); err != nil {
		slog.WarnContext(ctx, "failed to decode settings", slog.Any("error", err))
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.store.SaveSettings(ctx, newSettings); err != nil {
		slog.ErrorContext(ctx, "failed to save settings", slog.Any("error", err))
		http.Error(w, "failed to save settings", http.StatusInternalServerError)
		return
	}

	slog.InfoContext(ctx, "settings updated", slog.Bool("pause", newSettings.Pause))

	w.WriteHeader(http.StatusOK)
}
