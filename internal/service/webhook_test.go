package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/noq-app/api/internal/database"
	"github.com/noq-app/api/internal/enum"
	"github.com/noq-app/api/internal/ws"
)

const testWebhookSecret = "whsec_test"

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// mockWebhookStore implements WebhookStore.
type mockWebhookStore struct {
	markOrdersPaidFn func(ctx context.Context, arg database.MarkOrdersPaidParams) ([]database.Order, error)
	calls            int
}

func (m *mockWebhookStore) MarkOrdersPaid(ctx context.Context, arg database.MarkOrdersPaidParams) ([]database.Order, error) {
	m.calls++
	return m.markOrdersPaidFn(ctx, arg)
}

// mockNotifier implements Notifier, recording broadcasts.
type mockNotifier struct {
	events []ws.Event
	rooms  []uuid.UUID
}

func (m *mockNotifier) BroadcastToCanteen(canteenID uuid.UUID, event ws.Event) {
	m.rooms = append(m.rooms, canteenID)
	m.events = append(m.events, event)
}

const capturedBody = `{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_abc","order_id":"order_xyz"}}}}`

func TestWebhookProcess_MissingSignature(t *testing.T) {
	store := &mockWebhookStore{}
	svc := NewWebhookService(testWebhookSecret, store, nil)

	_, err := svc.Process(context.Background(), []byte(capturedBody), "")
	if !errors.Is(err, ErrMissingSignature) {
		t.Fatalf("expected ErrMissingSignature, got %v", err)
	}
	if store.calls != 0 {
		t.Errorf("store should not be touched, got %d calls", store.calls)
	}
}

func TestWebhookProcess_MissingBody(t *testing.T) {
	svc := NewWebhookService(testWebhookSecret, &mockWebhookStore{}, nil)

	_, err := svc.Process(context.Background(), nil, sign(testWebhookSecret, nil))
	if !errors.Is(err, ErrMissingBody) {
		t.Fatalf("expected ErrMissingBody, got %v", err)
	}
}

func TestWebhookProcess_TamperedBody(t *testing.T) {
	store := &mockWebhookStore{}
	svc := NewWebhookService(testWebhookSecret, store, nil)

	// Signature computed over the original body, then the body altered.
	sig := sign(testWebhookSecret, []byte(capturedBody))
	tampered := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_EVIL","order_id":"order_xyz"}}}}`)

	_, err := svc.Process(context.Background(), tampered, sig)
	if !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
	if store.calls != 0 {
		t.Errorf("tampered payload must not reach the store, got %d calls", store.calls)
	}
}

func TestWebhookProcess_MalformedPayload(t *testing.T) {
	store := &mockWebhookStore{}
	svc := NewWebhookService(testWebhookSecret, store, nil)

	body := []byte(`{not json`)
	_, err := svc.Process(context.Background(), body, sign(testWebhookSecret, body))
	if !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload, got %v", err)
	}
}

func TestWebhookProcess_IgnoresOtherEvents(t *testing.T) {
	store := &mockWebhookStore{}
	svc := NewWebhookService(testWebhookSecret, store, nil)

	body := []byte(`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_abc","order_id":"order_xyz"}}}}`)
	n, err := svc.Process(context.Background(), body, sign(testWebhookSecret, body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 transitions, got %d", n)
	}
	if store.calls != 0 {
		t.Errorf("non-captured events must not mutate, got %d store calls", store.calls)
	}
}

func TestWebhookProcess_MarksOrdersPaid(t *testing.T) {
	canteenID := uuid.New()
	orderID := uuid.New()

	store := &mockWebhookStore{
		markOrdersPaidFn: func(ctx context.Context, arg database.MarkOrdersPaidParams) ([]database.Order, error) {
			if arg.RazorpayOrderID != "order_xyz" {
				t.Errorf("expected gateway order id order_xyz, got %s", arg.RazorpayOrderID)
			}
			if arg.RazorpayPaymentID != "pay_abc" {
				t.Errorf("expected payment id pay_abc, got %s", arg.RazorpayPaymentID)
			}
			return []database.Order{{
				ID:        orderID,
				CanteenID: canteenID,
				Code:      pgtype.Text{String: "CC-0007", Valid: true},
				Status:    enum.OrderStatusPaid,
			}}, nil
		},
	}
	notifier := &mockNotifier{}
	svc := NewWebhookService(testWebhookSecret, store, notifier)

	n, err := svc.Process(context.Background(), []byte(capturedBody), sign(testWebhookSecret, []byte(capturedBody)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 transition, got %d", n)
	}

	if len(notifier.events) != 1 {
		t.Fatalf("expected 1 broadcast, got %d", len(notifier.events))
	}
	if notifier.rooms[0] != canteenID {
		t.Errorf("broadcast should target the order's canteen room")
	}
	if notifier.events[0].Type != enum.WSEventOrderPaid {
		t.Errorf("expected %s event, got %s", enum.WSEventOrderPaid, notifier.events[0].Type)
	}
}

func TestWebhookProcess_ReplayIsNoOp(t *testing.T) {
	// The guarded UPDATE matches nothing the second time; a replayed
	// callback is acknowledged without transitions or broadcasts.
	store := &mockWebhookStore{
		markOrdersPaidFn: func(ctx context.Context, arg database.MarkOrdersPaidParams) ([]database.Order, error) {
			return nil, nil
		},
	}
	notifier := &mockNotifier{}
	svc := NewWebhookService(testWebhookSecret, store, notifier)

	n, err := svc.Process(context.Background(), []byte(capturedBody), sign(testWebhookSecret, []byte(capturedBody)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 transitions on replay, got %d", n)
	}
	if len(notifier.events) != 0 {
		t.Errorf("expected no broadcasts on replay, got %d", len(notifier.events))
	}
}

func TestWebhookProcess_StoreError(t *testing.T) {
	store := &mockWebhookStore{
		markOrdersPaidFn: func(ctx context.Context, arg database.MarkOrdersPaidParams) ([]database.Order, error) {
			return nil, errors.New("connection reset")
		},
	}
	svc := NewWebhookService(testWebhookSecret, store, nil)

	_, err := svc.Process(context.Background(), []byte(capturedBody), sign(testWebhookSecret, []byte(capturedBody)))
	if err == nil {
		t.Fatal("expected store error to propagate so the gateway retries")
	}
}
