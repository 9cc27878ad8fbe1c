package handler

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/noq-app/api/internal/middleware"
	"github.com/noq-app/api/internal/service"
)

// CheckoutServicer defines the service methods needed by the checkout
// handler. Satisfied by *service.CheckoutService.
type CheckoutServicer interface {
	Checkout(ctx context.Context, req service.CheckoutRequest) (*service.CheckoutResult, error)
}

// CheckoutHandler handles the checkout endpoint.
type CheckoutHandler struct {
	svc CheckoutServicer

	// razorpayKeyID is the publishable key the client SDK needs; the
	// secret never leaves the server.
	razorpayKeyID string
}

// NewCheckoutHandler creates a new CheckoutHandler.
func NewCheckoutHandler(svc CheckoutServicer, razorpayKeyID string) *CheckoutHandler {
	return &CheckoutHandler{svc: svc, razorpayKeyID: razorpayKeyID}
}

// RegisterRoutes registers the checkout endpoint on the given Chi router.
func (h *CheckoutHandler) RegisterRoutes(r chi.Router) {
	r.Post("/checkout", h.Create)
}

// --- Request / Response types ---

type checkoutRequest struct {
	EatingMode string            `json:"eating_mode"`
	Lines      []cartLineRequest `json:"lines"`
}

type cartLineRequest struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int32  `json:"quantity"`
	Notes      string `json:"notes"`
}

type checkoutResponse struct {
	RazorpayOrderID string          `json:"razorpay_order_id"`
	RazorpayKeyID   string          `json:"razorpay_key_id"`
	Amount          int64           `json:"amount"`
	Currency        string          `json:"currency"`
	ItemsTotal      string          `json:"items_total"`
	Fees            feeResponse     `json:"fees"`
	Orders          []orderResponse `json:"orders"`
}

// --- Handlers ---

// Create handles POST /checkout.
func (h *CheckoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	lines := make([]service.CartLine, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = service.CartLine{
			MenuItemID: l.MenuItemID,
			Quantity:   l.Quantity,
			Notes:      l.Notes,
		}
	}

	result, err := h.svc.Checkout(r.Context(), service.CheckoutRequest{
		CustomerID: claims.UserID,
		EatingMode: req.EatingMode,
		Lines:      lines,
	})
	if err != nil {
		h.writeCheckoutError(w, err)
		return
	}

	orders := make([]orderResponse, len(result.Orders))
	for i, o := range result.Orders {
		orders[i] = dbOrderToResponse(o)
	}

	writeJSON(w, http.StatusCreated, checkoutResponse{
		RazorpayOrderID: result.RazorpayOrderID,
		RazorpayKeyID:   h.razorpayKeyID,
		Amount:          result.Amount,
		Currency:        result.Currency,
		ItemsTotal:      result.ItemsTotal.StringFixed(2),
		Fees: feeResponse{
			GatewayFeeBase: result.Fees.GatewayFeeBase.StringFixed(2),
			GatewayTax:     result.Fees.GatewayTax.StringFixed(2),
			BackendFee:     result.Fees.BackendFee.StringFixed(2),
			AppFee:         result.Fees.AppFee.StringFixed(2),
			FinalPayable:   result.Fees.FinalPayable.StringFixed(2),
		},
		Orders: orders,
	})
}

// writeCheckoutError maps service errors to HTTP status codes.
func (h *CheckoutHandler) writeCheckoutError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrInvalidEatingMode),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidItemID):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrItemNotFound),
		errors.Is(err, service.ErrCanteenNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrItemUnavailable),
		errors.Is(err, service.ErrCartLimitExceeded),
		errors.Is(err, service.ErrCanteenClosed),
		errors.Is(err, service.ErrNoOrderPrefix):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrGateway):
		log.Printf("ERROR: checkout gateway: %v", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "payment gateway unavailable"})
	default:
		log.Printf("ERROR: checkout: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
