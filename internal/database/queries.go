package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// --- Users ---

const createUser = `
INSERT INTO users (canteen_id, full_name, email, hashed_password, role)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, canteen_id, full_name, email, hashed_password, role, created_at
`

type CreateUserParams struct {
	CanteenID      pgtype.UUID
	FullName       string
	Email          string
	HashedPassword string
	Role           string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, createUser,
		arg.CanteenID, arg.FullName, arg.Email, arg.HashedPassword, arg.Role)
	var u User
	err := row.Scan(&u.ID, &u.CanteenID, &u.FullName, &u.Email, &u.HashedPassword, &u.Role, &u.CreatedAt)
	return u, err
}

const getUserByEmail = `
SELECT id, canteen_id, full_name, email, hashed_password, role, created_at
FROM users WHERE email = $1
`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRow(ctx, getUserByEmail, email)
	var u User
	err := row.Scan(&u.ID, &u.CanteenID, &u.FullName, &u.Email, &u.HashedPassword, &u.Role, &u.CreatedAt)
	return u, err
}

const getUserByID = `
SELECT id, canteen_id, full_name, email, hashed_password, role, created_at
FROM users WHERE id = $1
`

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	row := q.db.QueryRow(ctx, getUserByID, id)
	var u User
	err := row.Scan(&u.ID, &u.CanteenID, &u.FullName, &u.Email, &u.HashedPassword, &u.Role, &u.CreatedAt)
	return u, err
}

// --- Canteens ---

const createCanteen = `
INSERT INTO canteens (name, order_prefix)
VALUES ($1, $2)
RETURNING id, name, order_prefix, order_counter, is_open, accepting_orders, created_at
`

type CreateCanteenParams struct {
	Name        string
	OrderPrefix string
}

func (q *Queries) CreateCanteen(ctx context.Context, arg CreateCanteenParams) (Canteen, error) {
	row := q.db.QueryRow(ctx, createCanteen, arg.Name, arg.OrderPrefix)
	var c Canteen
	err := row.Scan(&c.ID, &c.Name, &c.OrderPrefix, &c.OrderCounter, &c.IsOpen, &c.AcceptingOrders, &c.CreatedAt)
	return c, err
}

const getCanteen = `
SELECT id, name, order_prefix, order_counter, is_open, accepting_orders, created_at
FROM canteens WHERE id = $1
`

func (q *Queries) GetCanteen(ctx context.Context, id uuid.UUID) (Canteen, error) {
	row := q.db.QueryRow(ctx, getCanteen, id)
	var c Canteen
	err := row.Scan(&c.ID, &c.Name, &c.OrderPrefix, &c.OrderCounter, &c.IsOpen, &c.AcceptingOrders, &c.CreatedAt)
	return c, err
}

const listCanteens = `
SELECT id, name, order_prefix, order_counter, is_open, accepting_orders, created_at
FROM canteens ORDER BY name
`

func (q *Queries) ListCanteens(ctx context.Context) ([]Canteen, error) {
	rows, err := q.db.Query(ctx, listCanteens)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Canteen
	for rows.Next() {
		var c Canteen
		if err := rows.Scan(&c.ID, &c.Name, &c.OrderPrefix, &c.OrderCounter, &c.IsOpen, &c.AcceptingOrders, &c.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// Compare-and-swap counter increment. Returns pgx.ErrNoRows when another
// transaction won the race (order_counter no longer equals $2); callers
// re-read and retry.
const incrementOrderCounter = `
UPDATE canteens SET order_counter = order_counter + 1
WHERE id = $1 AND order_counter = $2
RETURNING order_counter
`

type IncrementOrderCounterParams struct {
	ID       uuid.UUID
	Expected int32
}

func (q *Queries) IncrementOrderCounter(ctx context.Context, arg IncrementOrderCounterParams) (int32, error) {
	row := q.db.QueryRow(ctx, incrementOrderCounter, arg.ID, arg.Expected)
	var counter int32
	err := row.Scan(&counter)
	return counter, err
}

// --- Menu items ---

const createMenuItem = `
INSERT INTO menu_items (canteen_id, name, price, is_available, is_veg)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, canteen_id, name, price, is_available, is_veg, created_at
`

type CreateMenuItemParams struct {
	CanteenID   uuid.UUID
	Name        string
	Price       pgtype.Numeric
	IsAvailable bool
	IsVeg       bool
}

func (q *Queries) CreateMenuItem(ctx context.Context, arg CreateMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, createMenuItem,
		arg.CanteenID, arg.Name, arg.Price, arg.IsAvailable, arg.IsVeg)
	var m MenuItem
	err := row.Scan(&m.ID, &m.CanteenID, &m.Name, &m.Price, &m.IsAvailable, &m.IsVeg, &m.CreatedAt)
	return m, err
}

const getMenuItem = `
SELECT id, canteen_id, name, price, is_available, is_veg, created_at
FROM menu_items WHERE id = $1
`

func (q *Queries) GetMenuItem(ctx context.Context, id uuid.UUID) (MenuItem, error) {
	row := q.db.QueryRow(ctx, getMenuItem, id)
	var m MenuItem
	err := row.Scan(&m.ID, &m.CanteenID, &m.Name, &m.Price, &m.IsAvailable, &m.IsVeg, &m.CreatedAt)
	return m, err
}

const listMenuItemsByCanteen = `
SELECT id, canteen_id, name, price, is_available, is_veg, created_at
FROM menu_items WHERE canteen_id = $1 ORDER BY name
`

func (q *Queries) ListMenuItemsByCanteen(ctx context.Context, canteenID uuid.UUID) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, listMenuItemsByCanteen, canteenID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MenuItem
	for rows.Next() {
		var m MenuItem
		if err := rows.Scan(&m.ID, &m.CanteenID, &m.Name, &m.Price, &m.IsAvailable, &m.IsVeg, &m.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

// --- Orders ---

const orderColumns = `id, code, customer_id, canteen_id, lines, items_total,
gateway_fee, gateway_tax, backend_fee, app_fee, final_payable, eating_mode,
status, razorpay_order_id, razorpay_payment_id, expires_at, paid_at,
deleted, created_at, updated_at`

func scanOrder(row interface{ Scan(dest ...any) error }) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.Code, &o.CustomerID, &o.CanteenID, &o.Lines,
		&o.ItemsTotal, &o.GatewayFee, &o.GatewayTax, &o.BackendFee, &o.AppFee,
		&o.FinalPayable, &o.EatingMode, &o.Status, &o.RazorpayOrderID,
		&o.RazorpayPaymentID, &o.ExpiresAt, &o.PaidAt, &o.Deleted,
		&o.CreatedAt, &o.UpdatedAt)
	return o, err
}

const createOrder = `
INSERT INTO orders (code, customer_id, canteen_id, lines, items_total,
	gateway_fee, gateway_tax, backend_fee, app_fee, final_payable,
	eating_mode, status, razorpay_order_id, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	Code            pgtype.Text
	CustomerID      uuid.UUID
	CanteenID       uuid.UUID
	Lines           []OrderLine
	ItemsTotal      pgtype.Numeric
	GatewayFee      pgtype.Numeric
	GatewayTax      pgtype.Numeric
	BackendFee      pgtype.Numeric
	AppFee          pgtype.Numeric
	FinalPayable    pgtype.Numeric
	EatingMode      string
	Status          string
	RazorpayOrderID string
	ExpiresAt       time.Time
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.Code, arg.CustomerID, arg.CanteenID, arg.Lines, arg.ItemsTotal,
		arg.GatewayFee, arg.GatewayTax, arg.BackendFee, arg.AppFee,
		arg.FinalPayable, arg.EatingMode, arg.Status, arg.RazorpayOrderID,
		arg.ExpiresAt)
	return scanOrder(row)
}

const getOrder = `
SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND NOT deleted
`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const listOrdersByCustomer = `
SELECT ` + orderColumns + `
FROM orders WHERE customer_id = $1 AND NOT deleted
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`

type ListOrdersByCustomerParams struct {
	CustomerID uuid.UUID
	Limit      int32
	Offset     int32
}

func (q *Queries) ListOrdersByCustomer(ctx context.Context, arg ListOrdersByCustomerParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersByCustomer, arg.CustomerID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

const listOrdersByCanteen = `
SELECT ` + orderColumns + `
FROM orders
WHERE canteen_id = $1 AND NOT deleted
	AND ($2::text IS NULL OR status = $2)
ORDER BY created_at DESC
LIMIT $3 OFFSET $4
`

type ListOrdersByCanteenParams struct {
	CanteenID uuid.UUID
	Status    pgtype.Text
	Limit     int32
	Offset    int32
}

func (q *Queries) ListOrdersByCanteen(ctx context.Context, arg ListOrdersByCanteenParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersByCanteen, arg.CanteenID, arg.Status, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

// Status-guarded reconciliation: only rows still awaiting payment flip to
// PAID, so webhook replays and late deliveries are no-ops.
const markOrdersPaid = `
UPDATE orders
SET status = 'PAID', razorpay_payment_id = $2, paid_at = now(), updated_at = now()
WHERE razorpay_order_id = $1 AND status = 'PENDING_PAYMENT'
RETURNING ` + orderColumns

type MarkOrdersPaidParams struct {
	RazorpayOrderID   string
	RazorpayPaymentID string
}

func (q *Queries) MarkOrdersPaid(ctx context.Context, arg MarkOrdersPaidParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, markOrdersPaid, arg.RazorpayOrderID, arg.RazorpayPaymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

// Guarded transition: the WHERE clause pins the expected current status so
// a concurrent transition surfaces as pgx.ErrNoRows, never as a revert.
const updateOrderStatus = `
UPDATE orders SET status = $3, updated_at = now()
WHERE id = $1 AND canteen_id = $2 AND status = $4 AND NOT deleted
RETURNING ` + orderColumns

type UpdateOrderStatusParams struct {
	ID         uuid.UUID
	CanteenID  uuid.UUID
	Status     string
	FromStatus string
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.CanteenID, arg.Status, arg.FromStatus)
	return scanOrder(row)
}

// Reaper sweep: only unpaid reservations past their expiry are reclaimed.
// Orders a concurrent webhook already advanced are left untouched.
const abandonExpiredOrders = `
UPDATE orders SET status = 'ABANDONED', updated_at = now()
WHERE status = 'PENDING_PAYMENT' AND expires_at <= $1
RETURNING id
`

func (q *Queries) AbandonExpiredOrders(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	rows, err := q.db.Query(ctx, abandonExpiredOrders, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Soft delete for reporting tools. Distinct from the reaper's expiry
// sweep: the row stays, flagged, and disappears from reads.
const softDeleteOrder = `
UPDATE orders SET deleted = TRUE, updated_at = now()
WHERE id = $1 AND NOT deleted
RETURNING ` + orderColumns

func (q *Queries) SoftDeleteOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, softDeleteOrder, id))
}

func collectOrders(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]Order, error) {
	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}
