package http

import (
	"log/slog"
	"net/http"

	"github.com/Agamista0/ava-support-backend/pkg/httputil"
	"github.com/Agamista0/ava-support-backend/pkg/middleware"
	"github.com/Agamista0/ava-support-backend/pkg/validator"

	"github.com/Agamista0/ava-support-backend/internal/service"
)

// SubscriptionHandler handles the billing endpoints.
type SubscriptionHandler struct {
	subs   *service.SubscriptionService
	logger *slog.Logger
}

// NewSubscriptionHandler creates a subscription HTTP handler.
func NewSubscriptionHandler(subs *service.SubscriptionService, logger *slog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{subs: subs, logger: logger}
}

// SubscribeRequest is the JSON request body for opening a subscription.
type SubscribeRequest struct {
	PlanID string `json:"plan_id" validate:"required"`
}

// Plans handles GET /api/v1/billing/plans.
func (h *SubscriptionHandler) Plans(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: h.subs.Plans()})
}

// Subscribe handles POST /api/v1/billing/subscription.
func (h *SubscriptionHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req SubscribeRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	ctx := r.Context()
	checkout, err := h.subs.Subscribe(ctx, middleware.UserIDFromContext(ctx), req.PlanID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: checkout})
}

// Current handles GET /api/v1/billing/subscription.
func (h *SubscriptionHandler) Current(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sub, err := h.subs.Current(ctx, middleware.UserIDFromContext(ctx))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: sub})
}

// Cancel handles DELETE /api/v1/billing/subscription.
func (h *SubscriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.subs.Cancel(ctx, middleware.UserIDFromContext(ctx)); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"status": "canceled"}})
}
