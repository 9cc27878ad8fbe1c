package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/noq-app/api/internal/database"
)

// orderPrefixRe validates the human order-code prefix. Checked once at
// creation; the prefix is immutable afterwards.
var orderPrefixRe = regexp.MustCompile(`^[A-Z]{2,4}$`)

// CanteenStore defines the database methods needed by canteen handlers.
// Satisfied by *database.Queries.
type CanteenStore interface {
	CreateCanteen(ctx context.Context, arg database.CreateCanteenParams) (database.Canteen, error)
	GetCanteen(ctx context.Context, id uuid.UUID) (database.Canteen, error)
	ListCanteens(ctx context.Context) ([]database.Canteen, error)
	ListMenuItemsByCanteen(ctx context.Context, canteenID uuid.UUID) ([]database.MenuItem, error)
}

// CanteenHandler handles canteen and menu read endpoints.
type CanteenHandler struct {
	store CanteenStore
}

// NewCanteenHandler creates a new CanteenHandler.
func NewCanteenHandler(store CanteenStore) *CanteenHandler {
	return &CanteenHandler{store: store}
}

// RegisterRoutes registers the authenticated canteen endpoints.
func (h *CanteenHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{cid}/menu", h.Menu)
}

// RegisterAdminRoutes registers the admin-only canteen endpoints.
func (h *CanteenHandler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/", h.Create)
}

// --- Request / Response types ---

type createCanteenRequest struct {
	Name        string `json:"name"`
	OrderPrefix string `json:"order_prefix"`
}

type canteenResponse struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	OrderPrefix     string    `json:"order_prefix"`
	OrderCounter    int32     `json:"order_counter"`
	IsOpen          bool      `json:"is_open"`
	AcceptingOrders bool      `json:"accepting_orders"`
	CreatedAt       time.Time `json:"created_at"`
}

type menuItemResponse struct {
	ID          uuid.UUID `json:"id"`
	CanteenID   uuid.UUID `json:"canteen_id"`
	Name        string    `json:"name"`
	Price       string    `json:"price"`
	IsAvailable bool      `json:"is_available"`
	IsVeg       bool      `json:"is_veg"`
}

// --- Handlers ---

// Create handles POST /canteens. Admin only.
func (h *CanteenHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCanteenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if !orderPrefixRe.MatchString(req.OrderPrefix) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "order_prefix must be 2-4 uppercase letters"})
		return
	}

	canteen, err := h.store.CreateCanteen(r.Context(), database.CreateCanteenParams{
		Name:        req.Name,
		OrderPrefix: req.OrderPrefix,
	})
	if err != nil {
		log.Printf("ERROR: create canteen: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toCanteenResponse(canteen))
}

// List handles GET /canteens.
func (h *CanteenHandler) List(w http.ResponseWriter, r *http.Request) {
	canteens, err := h.store.ListCanteens(r.Context())
	if err != nil {
		log.Printf("ERROR: list canteens: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]canteenResponse, len(canteens))
	for i, c := range canteens {
		resp[i] = toCanteenResponse(c)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Menu handles GET /canteens/{cid}/menu.
func (h *CanteenHandler) Menu(w http.ResponseWriter, r *http.Request) {
	canteenID, err := uuid.Parse(chi.URLParam(r, "cid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid canteen ID"})
		return
	}

	if _, err := h.store.GetCanteen(r.Context(), canteenID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "canteen not found"})
			return
		}
		log.Printf("ERROR: get canteen: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.store.ListMenuItemsByCanteen(r.Context(), canteenID)
	if err != nil {
		log.Printf("ERROR: list menu items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]menuItemResponse, len(items))
	for i, m := range items {
		resp[i] = menuItemResponse{
			ID:          m.ID,
			CanteenID:   m.CanteenID,
			Name:        m.Name,
			Price:       numericToString(m.Price),
			IsAvailable: m.IsAvailable,
			IsVeg:       m.IsVeg,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

func toCanteenResponse(c database.Canteen) canteenResponse {
	return canteenResponse{
		ID:              c.ID,
		Name:            c.Name,
		OrderPrefix:     c.OrderPrefix,
		OrderCounter:    c.OrderCounter,
		IsOpen:          c.IsOpen,
		AcceptingOrders: c.AcceptingOrders,
		CreatedAt:       c.CreatedAt,
	}
}
