package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Agamista0/ava-support-backend/pkg/httputil"
	"github.com/Agamista0/ava-support-backend/pkg/middleware"

	"github.com/Agamista0/ava-support-backend/internal/service"
)

// SessionHandler exposes the user's active sessions.
type SessionHandler struct {
	manager *service.AuthManager
	logger  *slog.Logger
}

// NewSessionHandler creates a session HTTP handler.
func NewSessionHandler(manager *service.AuthManager, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{manager: manager, logger: logger}
}

// List handles GET /api/v1/sessions.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessions, err := h.manager.ListSessions(ctx, middleware.UserIDFromContext(ctx))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	current := middleware.SessionIDFromContext(ctx)
	type sessionView struct {
		ID             string `json:"id"`
		DeviceInfo     string `json:"device_info"`
		IPAddress      string `json:"ip_address"`
		CreatedAt      string `json:"created_at"`
		LastActivityAt string `json:"last_activity_at"`
		Current        bool   `json:"current"`
	}

	views := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, sessionView{
			ID:             s.ID,
			DeviceInfo:     s.DeviceInfo,
			IPAddress:      s.IPAddress,
			CreatedAt:      s.CreatedAt.Format(timeFormat),
			LastActivityAt: s.LastActivityAt.Format(timeFormat),
			Current:        s.ID == current,
		})
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: views})
}

// Revoke handles DELETE /api/v1/sessions/{id}.
func (h *SessionHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := chi.URLParam(r, "id")

	err := h.manager.RevokeSession(ctx,
		middleware.UserIDFromContext(ctx),
		sessionID,
		middleware.SessionIDFromContext(ctx),
		requestMeta(r),
	)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"status": "revoked"}})
}
