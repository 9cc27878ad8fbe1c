package handler

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/noq-app/api/internal/service"
)

// signatureHeader carries the gateway's HMAC over the raw request body.
const signatureHeader = "X-Razorpay-Signature"

// maxWebhookBody caps how much we read from the gateway.
const maxWebhookBody = 1 << 20

// WebhookProcessor defines the service methods needed by the webhook
// handler. Satisfied by *service.WebhookService.
type WebhookProcessor interface {
	Process(ctx context.Context, rawBody []byte, signature string) (int, error)
}

// WebhookHandler receives payment gateway callbacks.
type WebhookHandler struct {
	svc WebhookProcessor
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(svc WebhookProcessor) *WebhookHandler {
	return &WebhookHandler{svc: svc}
}

// RegisterRoutes registers the webhook endpoint on the given Chi router.
// Mounted outside the authenticated group: the signature is the auth.
func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/razorpay", h.Handle)
}

// Handle handles POST /webhooks/razorpay.
//
// Caller-fault failures (missing/invalid signature, malformed body) are
// rejected without side effects and without detail; internal failures
// return 500 so the gateway's retry re-delivers. Everything else is
// acknowledged 200, including business no-ops, so the gateway stops
// retrying.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	rawBody, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	_, err = h.svc.Process(r.Context(), rawBody, r.Header.Get(signatureHeader))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	case errors.Is(err, service.ErrMissingSignature),
		errors.Is(err, service.ErrMissingBody),
		errors.Is(err, service.ErrMalformedPayload):
		http.Error(w, "bad request", http.StatusBadRequest)
	case errors.Is(err, service.ErrBadSignature):
		http.Error(w, "invalid signature", http.StatusUnauthorized)
	default:
		log.Printf("ERROR: webhook: %v", err)
		http.Error(w, "webhook error", http.StatusInternalServerError)
	}
}
