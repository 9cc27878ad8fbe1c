package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/noq-app/api/internal/database"
	"github.com/noq-app/api/internal/enum"
	"github.com/noq-app/api/internal/gateway"
	"github.com/noq-app/api/internal/ws"
)

// Errors returned by the webhook service. Signature failures carry no
// detail about why verification failed.
var (
	ErrMissingSignature = errors.New("missing webhook signature")
	ErrMissingBody      = errors.New("missing webhook body")
	ErrBadSignature     = errors.New("webhook signature mismatch")
	ErrMalformedPayload = errors.New("malformed webhook payload")
)

// WebhookStore defines the DB methods needed to reconcile payments.
// Satisfied by *database.Queries.
type WebhookStore interface {
	MarkOrdersPaid(ctx context.Context, arg database.MarkOrdersPaidParams) ([]database.Order, error)
}

// Notifier broadcasts order events to canteen rooms.
// Satisfied by *ws.Hub.
type Notifier interface {
	BroadcastToCanteen(canteenID uuid.UUID, event ws.Event)
}

// webhookEvent is the Razorpay envelope, trimmed to the fields we read.
type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// paidEventPayload is what staff dashboards receive when an order flips
// to PAID.
type paidEventPayload struct {
	OrderID uuid.UUID `json:"order_id"`
	Code    string    `json:"code"`
	Status  string    `json:"status"`
}

// WebhookService authenticates and applies gateway payment callbacks.
type WebhookService struct {
	secret   string
	store    WebhookStore
	notifier Notifier
}

// NewWebhookService creates a new WebhookService.
func NewWebhookService(secret string, store WebhookStore, notifier Notifier) *WebhookService {
	return &WebhookService{secret: secret, store: store, notifier: notifier}
}

// Process verifies the callback and transitions matching pending orders
// to PAID. The HMAC check runs over the exact raw bytes and precedes any
// parsing; unverified bodies are never unmarshaled.
//
// Replays and unknown event types are no-ops, not errors: the gateway
// retries anything that is not acknowledged, so only internal failures
// return an error. The number of orders transitioned is returned.
func (s *WebhookService) Process(ctx context.Context, rawBody []byte, signature string) (int, error) {
	if signature == "" {
		return 0, ErrMissingSignature
	}
	if len(rawBody) == 0 {
		return 0, ErrMissingBody
	}
	if !gateway.ValidSignature(s.secret, rawBody, signature) {
		return 0, ErrBadSignature
	}

	var event webhookEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	// Unknown event types are acknowledged without side effects.
	if event.Event != enum.EventPaymentCaptured {
		return 0, nil
	}

	payment := event.Payload.Payment.Entity
	orders, err := s.store.MarkOrdersPaid(ctx, database.MarkOrdersPaidParams{
		RazorpayOrderID:   payment.OrderID,
		RazorpayPaymentID: payment.ID,
	})
	if err != nil {
		return 0, fmt.Errorf("mark orders paid for %s: %w", payment.OrderID, err)
	}

	if s.notifier != nil {
		for _, o := range orders {
			payload, err := json.Marshal(paidEventPayload{
				OrderID: o.ID,
				Code:    o.Code.String,
				Status:  o.Status,
			})
			if err != nil {
				continue
			}
			s.notifier.BroadcastToCanteen(o.CanteenID, ws.Event{
				Type:    enum.WSEventOrderPaid,
				Payload: payload,
			})
		}
	}

	return len(orders), nil
}
