package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/noq-app/api/internal/database"
	"github.com/shopspring/decimal"
)

func decodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}

// --- Shared response types ---

type orderLineResponse struct {
	MenuItemID uuid.UUID `json:"menu_item_id"`
	Name       string    `json:"name"`
	Price      string    `json:"price"`
	Quantity   int32     `json:"quantity"`
	Notes      string    `json:"notes,omitempty"`
	IsVeg      bool      `json:"is_veg"`
}

type feeResponse struct {
	GatewayFeeBase string `json:"gateway_fee_base"`
	GatewayTax     string `json:"gateway_tax"`
	BackendFee     string `json:"backend_fee"`
	AppFee         string `json:"app_fee"`
	FinalPayable   string `json:"final_payable"`
}

type orderResponse struct {
	ID                uuid.UUID           `json:"id"`
	Code              *string             `json:"code"`
	CustomerID        uuid.UUID           `json:"customer_id"`
	CanteenID         uuid.UUID           `json:"canteen_id"`
	Lines             []orderLineResponse `json:"lines"`
	ItemsTotal        string              `json:"items_total"`
	Fees              feeResponse         `json:"fees"`
	EatingMode        string              `json:"eating_mode"`
	Status            string              `json:"status"`
	RazorpayOrderID   string              `json:"razorpay_order_id"`
	RazorpayPaymentID *string             `json:"razorpay_payment_id"`
	ExpiresAt         time.Time           `json:"expires_at"`
	PaidAt            *time.Time          `json:"paid_at"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

func dbOrderToResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:         o.ID,
		CustomerID: o.CustomerID,
		CanteenID:  o.CanteenID,
		ItemsTotal: numericToString(o.ItemsTotal),
		Fees: feeResponse{
			GatewayFeeBase: numericToString(o.GatewayFee),
			GatewayTax:     numericToString(o.GatewayTax),
			BackendFee:     numericToString(o.BackendFee),
			AppFee:         numericToString(o.AppFee),
			FinalPayable:   numericToString(o.FinalPayable),
		},
		EatingMode:      o.EatingMode,
		Status:          o.Status,
		RazorpayOrderID: o.RazorpayOrderID,
		ExpiresAt:       o.ExpiresAt,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}

	if o.Code.Valid {
		resp.Code = &o.Code.String
	}
	if o.RazorpayPaymentID.Valid {
		resp.RazorpayPaymentID = &o.RazorpayPaymentID.String
	}
	if o.PaidAt.Valid {
		resp.PaidAt = &o.PaidAt.Time
	}

	resp.Lines = make([]orderLineResponse, len(o.Lines))
	for i, l := range o.Lines {
		resp.Lines[i] = orderLineResponse{
			MenuItemID: l.MenuItemID,
			Name:       l.Name,
			Price:      l.Price.StringFixed(2),
			Quantity:   l.Quantity,
			Notes:      l.Notes,
			IsVeg:      l.IsVeg,
		}
	}

	return resp
}
