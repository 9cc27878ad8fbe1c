package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/noq-app/api/internal/database"
	"github.com/noq-app/api/internal/enum"
	"github.com/noq-app/api/internal/middleware"
	"github.com/noq-app/api/internal/ws"
)

// OrderStore defines the database methods needed by order handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrdersByCustomer(ctx context.Context, arg database.ListOrdersByCustomerParams) ([]database.Order, error)
	ListOrdersByCanteen(ctx context.Context, arg database.ListOrdersByCanteenParams) ([]database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	SoftDeleteOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
}

// Broadcaster pushes order events to canteen rooms. Satisfied by *ws.Hub.
type Broadcaster interface {
	BroadcastToCanteen(canteenID uuid.UUID, event ws.Event)
}

// OrderHandler handles order read and fulfillment endpoints.
type OrderHandler struct {
	store OrderStore
	hub   Broadcaster
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(store OrderStore, hub Broadcaster) *OrderHandler {
	return &OrderHandler{store: store, hub: hub}
}

// RegisterCustomerRoutes registers the customer-facing order endpoints.
func (h *OrderHandler) RegisterCustomerRoutes(r chi.Router) {
	r.Get("/", h.ListMine)
	r.Get("/{id}", h.Get)
	r.Delete("/{id}", h.SoftDelete)
}

// RegisterCanteenRoutes registers the staff endpoints.
// Expected to be mounted inside a canteen-scoped subrouter:
// /canteens/{cid}/orders
func (h *OrderHandler) RegisterCanteenRoutes(r chi.Router) {
	r.Get("/", h.ListForCanteen)
	r.Patch("/{id}/status", h.UpdateStatus)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// --- Handlers ---

// ListMine handles GET /orders.
func (h *OrderHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	limit, offset := parsePagination(r)
	orders, err := h.store.ListOrdersByCustomer(r.Context(), database.ListOrdersByCustomerParams{
		CustomerID: claims.UserID,
		Limit:      int32(limit),
		Offset:     int32(offset),
	})
	if err != nil {
		log.Printf("ERROR: list customer orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toOrderList(orders, limit, offset))
}

// Get handles GET /orders/{id}. Customers see only their own orders;
// admins see any.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if claims.Role != enum.UserRoleAdmin && order.CustomerID != claims.UserID {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		return
	}

	writeJSON(w, http.StatusOK, dbOrderToResponse(order))
}

// ListForCanteen handles GET /canteens/{cid}/orders.
func (h *OrderHandler) ListForCanteen(w http.ResponseWriter, r *http.Request) {
	canteenID, err := uuid.Parse(chi.URLParam(r, "cid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid canteen ID"})
		return
	}

	limit, offset := parsePagination(r)
	params := database.ListOrdersByCanteenParams{
		CanteenID: canteenID,
		Limit:     int32(limit),
		Offset:    int32(offset),
	}
	if s := r.URL.Query().Get("status"); s != "" {
		if !isValidOrderStatus(s) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
			return
		}
		params.Status = pgtype.Text{String: s, Valid: true}
	}

	orders, err := h.store.ListOrdersByCanteen(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list canteen orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toOrderList(orders, limit, offset))
}

// UpdateStatus handles PATCH /canteens/{cid}/orders/{id}/status.
// Staff fulfillment only moves PAID -> READY -> COMPLETED; payment and
// expiry transitions belong to the webhook reconciler and the reaper.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	canteenID, err := uuid.Parse(chi.URLParam(r, "cid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid canteen ID"})
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}
	if !isValidOrderStatus(req.Status) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}

	// Fetch current order to validate the transition.
	current, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order for status update: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if current.CanteenID != canteenID {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		return
	}

	if err := validateStatusTransition(current.Status, req.Status); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}

	updated, err := h.store.UpdateOrderStatus(r.Context(), database.UpdateOrderStatusParams{
		ID:         orderID,
		CanteenID:  canteenID,
		Status:     req.Status,
		FromStatus: current.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Status changed between our read and write (race condition)
			writeJSON(w, http.StatusConflict, map[string]string{"error": "order status changed, please retry"})
			return
		}
		log.Printf("ERROR: update order status: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if h.hub != nil {
		payload, err := json.Marshal(map[string]string{
			"order_id": updated.ID.String(),
			"code":     updated.Code.String,
			"status":   updated.Status,
		})
		if err == nil {
			h.hub.BroadcastToCanteen(canteenID, ws.Event{
				Type:    enum.WSEventOrderStatus,
				Payload: payload,
			})
		}
	}

	writeJSON(w, http.StatusOK, dbOrderToResponse(updated))
}

// SoftDelete handles DELETE /orders/{id}. Admin-only: marks the order
// deleted for reporting tools; the row is never physically removed here.
func (h *OrderHandler) SoftDelete(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	if claims.Role != enum.UserRoleAdmin {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "insufficient permissions"})
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.store.SoftDeleteOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: soft delete order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbOrderToResponse(order))
}

// --- Helpers ---

func parsePagination(r *http.Request) (limit, offset int) {
	limit = 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset = 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}

func toOrderList(orders []database.Order, limit, offset int) orderListResponse {
	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = dbOrderToResponse(o)
	}
	return orderListResponse{Orders: resp, Limit: limit, Offset: offset}
}

// isValidOrderStatus checks if the given status is a known order status.
func isValidOrderStatus(s string) bool {
	switch s {
	case enum.OrderStatusPendingPayment,
		enum.OrderStatusPaid,
		enum.OrderStatusReady,
		enum.OrderStatusCompleted,
		enum.OrderStatusAbandoned:
		return true
	}
	return false
}

// allowedTransitions defines the staff-reachable status edges.
// Key is current status, value is the set of statuses it can move to.
var allowedTransitions = map[string][]string{
	enum.OrderStatusPaid:  {enum.OrderStatusReady},
	enum.OrderStatusReady: {enum.OrderStatusCompleted},
}

// validateStatusTransition checks if the transition from current to next
// is allowed.
func validateStatusTransition(current, next string) error {
	allowed, ok := allowedTransitions[current]
	if !ok {
		return fmt.Errorf("cannot transition from %s", current)
	}
	for _, s := range allowed {
		if s == next {
			return nil
		}
	}
	return fmt.Errorf("cannot transition from %s to %s", current, next)
}
