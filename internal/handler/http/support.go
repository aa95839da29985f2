package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Agamista0/ava-support-backend/pkg/httputil"
	"github.com/Agamista0/ava-support-backend/pkg/middleware"
	"github.com/Agamista0/ava-support-backend/pkg/pagination"
	"github.com/Agamista0/ava-support-backend/pkg/validator"

	"github.com/Agamista0/ava-support-backend/internal/service"
)

// maxAudioUpload caps transcription uploads at 25 MB, the Whisper API limit.
const maxAudioUpload = 25 << 20

// SupportHandler handles the support request and usage endpoints.
type SupportHandler struct {
	support *service.SupportService
	credits *service.CreditService
	logger  *slog.Logger
}

// NewSupportHandler creates a support HTTP handler.
func NewSupportHandler(support *service.SupportService, credits *service.CreditService, logger *slog.Logger) *SupportHandler {
	return &SupportHandler{support: support, credits: credits, logger: logger}
}

// SupportRequestBody is the JSON request body for a new support request.
type SupportRequestBody struct {
	Subject string `json:"subject" validate:"required,min=3,max=200"`
	Message string `json:"message" validate:"required,min=10,max=10000"`
}

// ConsumeRequestBody is the JSON request body for a direct credit deduction,
// used by the chat frontend to charge operations it meters itself.
type ConsumeRequestBody struct {
	Amount    int    `json:"amount" validate:"required,min=1"`
	Operation string `json:"operation" validate:"required,min=1,max=50"`
	Reference string `json:"reference" validate:"omitempty,max=255"`
}

// CreateRequest handles POST /api/v1/support/requests.
func (h *SupportHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req SupportRequestBody
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	ctx := r.Context()
	ticket, err := h.support.CreateRequest(ctx, middleware.UserIDFromContext(ctx), req.Subject, req.Message)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: ticket})
}

// Transcribe handles POST /api/v1/support/transcriptions. The audio arrives as a
// multipart upload under the "audio" field.
func (h *SupportHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAudioUpload)

	file, header, err := r.FormFile("audio")
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "missing audio upload"},
		})
		return
	}
	defer file.Close()

	ctx := r.Context()
	text, err := h.support.Transcribe(ctx, middleware.UserIDFromContext(ctx), header.Filename, file)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"text": text}})
}

// Consume handles POST /api/v1/support/credits/consume.
func (h *SupportHandler) Consume(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req ConsumeRequestBody
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	ctx := r.Context()
	userID := middleware.UserIDFromContext(ctx)
	if err := h.credits.Consume(ctx, userID, req.Amount, req.Operation, req.Reference); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	ledger, err := h.credits.Balance(ctx, userID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: ledger})
}

// Balance handles GET /api/v1/support/credits.
func (h *SupportHandler) Balance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ledger, err := h.credits.Balance(ctx, middleware.UserIDFromContext(ctx))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: ledger})
}

// UserBalance handles GET /api/v1/support/users/{id}/credits. Restricted to
// support staff looking up a customer's ledger.
func (h *SupportHandler) UserBalance(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	ledger, err := h.credits.Balance(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: ledger})
}

// Usage handles GET /api/v1/support/credits/usage.
func (h *SupportHandler) Usage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := h.credits.Usage(ctx, middleware.UserIDFromContext(ctx), pagination.FromRequest(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}
