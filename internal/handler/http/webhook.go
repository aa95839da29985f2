package http

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/Agamista0/ava-support-backend/pkg/httputil"
	"github.com/Agamista0/ava-support-backend/pkg/validator"

	"github.com/Agamista0/ava-support-backend/internal/service"
)

const signatureHeader = "X-Webhook-Signature"

// maxWebhookBody caps webhook payloads at 256 KB.
const maxWebhookBody = 256 << 10

// WebhookHandler receives payment provider deliveries. It is mounted outside
// the JSON content-type middleware: the signature covers the raw bytes, so
// the body must be read before any parsing touches it.
type WebhookHandler struct {
	subs   *service.SubscriptionService
	secret []byte
	logger *slog.Logger
}

// NewWebhookHandler creates a webhook HTTP handler.
func NewWebhookHandler(subs *service.SubscriptionService, secret string, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{subs: subs, secret: []byte(secret), logger: logger}
}

// HandlePayment handles POST /webhook/payments.
func (h *WebhookHandler) HandlePayment(w http.ResponseWriter, r *http.Request) {
	if len(h.secret) == 0 {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "FEATURE_DISABLED", Message: "payment webhooks not configured"},
		})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "unreadable body"},
		})
		return
	}

	if !h.verifySignature(body, r.Header.Get(signatureHeader)) {
		h.logger.WarnContext(r.Context(), "webhook signature mismatch",
			slog.String("remote_addr", r.RemoteAddr))
		httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "UNAUTHORIZED", Message: "invalid signature"},
		})
		return
	}

	var event service.PaymentEvent
	if err := json.Unmarshal(body, &event); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "malformed event payload"},
		})
		return
	}
	if err := validator.Validate(event); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	processed, err := h.subs.HandlePaymentEvent(r.Context(), event)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if !processed {
		// Replays are acknowledged so the provider stops retrying.
		httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"status": "already_processed"}})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"status": "processed"}})
}

// verifySignature checks the hex HMAC-SHA256 of the raw body in constant
// time.
func (h *WebhookHandler) verifySignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	return hmac.Equal(provided, mac.Sum(nil))
}
