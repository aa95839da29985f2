package http

import (
	"log/slog"
	"net/http"

	"github.com/Agamista0/ava-support-backend/pkg/httputil"
	"github.com/Agamista0/ava-support-backend/pkg/middleware"
	"github.com/Agamista0/ava-support-backend/pkg/validator"

	"github.com/Agamista0/ava-support-backend/internal/domain"
	"github.com/Agamista0/ava-support-backend/internal/service"
)

// AuthHandler handles the authentication endpoints.
type AuthHandler struct {
	manager *service.AuthManager
	logger  *slog.Logger
}

// NewAuthHandler creates an auth HTTP handler.
func NewAuthHandler(manager *service.AuthManager, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{manager: manager, logger: logger}
}

// RegisterRequest is the JSON request body for registration.
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name" validate:"required,min=1,max=100"`
	LastName  string `json:"last_name" validate:"required,min=1,max=100"`
}

// LoginRequest is the JSON request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest is the JSON request body for token refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// ChangePasswordRequest is the JSON request body for password change.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

// AuthResponse pairs the user with their tokens.
type AuthResponse struct {
	User   *domain.User      `json:"user"`
	Tokens *domain.TokenPair `json:"tokens"`
}

func requestMeta(r *http.Request) service.RequestMeta {
	return service.RequestMeta{
		IPAddress:  middleware.ClientIP(r),
		UserAgent:  r.UserAgent(),
		DeviceInfo: r.Header.Get("X-Device-Info"),
	}
}

// Register handles POST /api/v1/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req RegisterRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	user, _, pair, err := h.manager.Register(r.Context(), req.Email, req.Password, req.FirstName, req.LastName, requestMeta(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: AuthResponse{User: user, Tokens: pair}})
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req LoginRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	user, _, pair, err := h.manager.Login(r.Context(), req.Email, req.Password, requestMeta(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: AuthResponse{User: user, Tokens: pair}})
}

// Refresh handles POST /api/v1/auth/refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req RefreshRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	pair, err := h.manager.Refresh(r.Context(), req.RefreshToken, requestMeta(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: pair})
}

// Logout handles POST /api/v1/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	err := h.manager.Logout(ctx,
		middleware.UserIDFromContext(ctx),
		middleware.SessionIDFromContext(ctx),
		middleware.TokenIDFromContext(ctx),
		middleware.TokenExpiryFromContext(ctx),
		requestMeta(r),
	)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"status": "logged_out"}})
}

// LogoutAll handles POST /api/v1/auth/logout-all.
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	n, err := h.manager.LogoutAll(ctx,
		middleware.UserIDFromContext(ctx),
		middleware.TokenIDFromContext(ctx),
		middleware.TokenExpiryFromContext(ctx),
		requestMeta(r),
	)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]int64{"sessions_revoked": n}})
}

// ChangePassword handles POST /api/v1/auth/change-password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req ChangePasswordRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	ctx := r.Context()
	_, pair, err := h.manager.ChangePassword(ctx,
		middleware.UserIDFromContext(ctx),
		req.CurrentPassword,
		req.NewPassword,
		requestMeta(r),
	)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: pair})
}
