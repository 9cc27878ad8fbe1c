package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

type User struct {
	ID             uuid.UUID
	CanteenID      pgtype.UUID
	FullName       string
	Email          string
	HashedPassword string
	Role           string
	CreatedAt      time.Time
}

type Canteen struct {
	ID              uuid.UUID
	Name            string
	OrderPrefix     string
	OrderCounter    int32
	IsOpen          bool
	AcceptingOrders bool
	CreatedAt       time.Time
}

type MenuItem struct {
	ID          uuid.UUID
	CanteenID   uuid.UUID
	Name        string
	Price       pgtype.Numeric
	IsAvailable bool
	IsVeg       bool
	CreatedAt   time.Time
}

// OrderLine is one element of the JSONB line snapshot on an order.
// Prices and names are copied from the menu item at checkout time so
// later catalog edits never change a placed order.
type OrderLine struct {
	MenuItemID uuid.UUID       `json:"menu_item_id"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Quantity   int32           `json:"quantity"`
	Notes      string          `json:"notes,omitempty"`
	IsVeg      bool            `json:"is_veg"`
}

type Order struct {
	ID                uuid.UUID
	Code              pgtype.Text
	CustomerID        uuid.UUID
	CanteenID         uuid.UUID
	Lines             []OrderLine
	ItemsTotal        pgtype.Numeric
	GatewayFee        pgtype.Numeric
	GatewayTax        pgtype.Numeric
	BackendFee        pgtype.Numeric
	AppFee            pgtype.Numeric
	FinalPayable      pgtype.Numeric
	EatingMode        string
	Status            string
	RazorpayOrderID   string
	RazorpayPaymentID pgtype.Text
	ExpiresAt         time.Time
	PaidAt            pgtype.Timestamptz
	Deleted           bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
