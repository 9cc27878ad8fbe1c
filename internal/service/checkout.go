package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/noq-app/api/internal/database"
	"github.com/noq-app/api/internal/enum"
	"github.com/noq-app/api/internal/fees"
	"github.com/noq-app/api/internal/gateway"
	"github.com/shopspring/decimal"
)

// cartCeiling is the fraud/risk guard on the items total. Carts at or
// above it are rejected after full accumulation.
var cartCeiling = decimal.NewFromInt(1000)

// reservationWindow is how long an unpaid order is held before the
// reaper may reclaim it.
const reservationWindow = 10 * time.Minute

const currency = "INR"

// Errors returned by the checkout service.
var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInvalidEatingMode = errors.New("invalid eating_mode")
	ErrInvalidQuantity   = errors.New("quantity must be > 0")
	ErrInvalidItemID     = errors.New("invalid menu item id")
	ErrItemNotFound      = errors.New("menu item not found")
	ErrItemUnavailable   = errors.New("menu item unavailable")
	ErrCartLimitExceeded = errors.New("items total exceeds cart limit")
	ErrCanteenClosed     = errors.New("canteen is not accepting orders")
	ErrGateway           = errors.New("payment gateway error")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// CheckoutStore defines the DB methods needed to create orders.
// Satisfied by *database.Queries (and its WithTx variant).
type CheckoutStore interface {
	GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error)
	GetCanteen(ctx context.Context, id uuid.UUID) (database.Canteen, error)
	IncrementOrderCounter(ctx context.Context, arg database.IncrementOrderCounterParams) (int32, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
}

// NewCheckoutStore creates a CheckoutStore from a DBTX (pool or tx).
type NewCheckoutStore func(db database.DBTX) CheckoutStore

// PaymentGateway creates payment orders with the external provider.
// Satisfied by *gateway.Client.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (gateway.Order, error)
}

// CartLine is one client-supplied cart entry.
type CartLine struct {
	MenuItemID string
	Quantity   int32
	Notes      string
}

// CheckoutRequest is the validated input for a checkout.
type CheckoutRequest struct {
	CustomerID uuid.UUID
	EatingMode string
	Lines      []CartLine
}

// CheckoutResult carries what the client needs to invoke the gateway's
// own SDK, plus the pending orders that were created.
type CheckoutResult struct {
	RazorpayOrderID string
	Amount          int64
	Currency        string
	ItemsTotal      decimal.Decimal
	Fees            fees.Breakdown
	Orders          []database.Order
}

// CheckoutService validates carts, prices them, creates the gateway
// payment order, and persists one pending order per canteen.
type CheckoutService struct {
	store    CheckoutStore
	pool     TxBeginner
	newStore NewCheckoutStore
	gw       PaymentGateway
	now      func() time.Time
}

// NewCheckoutService creates a new CheckoutService.
func NewCheckoutService(store CheckoutStore, pool TxBeginner, newStore NewCheckoutStore, gw PaymentGateway) *CheckoutService {
	return &CheckoutService{store: store, pool: pool, newStore: newStore, gw: gw, now: time.Now}
}

// canteenGroup collects the snapshotted lines for one canteen, in cart
// order.
type canteenGroup struct {
	canteen database.Canteen
	lines   []database.OrderLine
}

// Checkout runs the full flow. The gateway order is created before any
// order row is persisted; if persistence then fails the intent is
// orphaned and must be reconciled by hand (the error carries the gateway
// reference for that).
func (s *CheckoutService) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	if req.EatingMode != enum.EatingModeDineIn && req.EatingMode != enum.EatingModeTakeaway {
		return nil, ErrInvalidEatingMode
	}
	if len(req.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	itemsTotal, groups, order, err := s.resolveCart(ctx, req.Lines)
	if err != nil {
		return nil, err
	}

	// Risk guard, checked only after full accumulation.
	if itemsTotal.GreaterThanOrEqual(cartCeiling) {
		return nil, ErrCartLimitExceeded
	}

	breakdown := fees.Calculate(itemsTotal)

	// Gateway call before persistence, with a fresh receipt token.
	amount := breakdown.FinalPayable.Mul(decimal.NewFromInt(100)).IntPart()
	receipt := fmt.Sprintf("noq_%d", s.now().UnixNano())
	rzpOrder, err := s.gw.CreateOrder(ctx, amount, currency, receipt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	expiresAt := s.now().Add(reservationWindow)

	// One transaction per canteen: sequential code allocation and the
	// order insert commit or roll back together.
	var orders []database.Order
	for _, canteenID := range order {
		g := groups[canteenID]
		o, err := s.createCanteenOrder(ctx, req, g, itemsTotal, breakdown, rzpOrder.ID, expiresAt)
		if err != nil {
			return nil, fmt.Errorf("persist order for gateway ref %s: %w", rzpOrder.ID, err)
		}
		orders = append(orders, o)
	}

	return &CheckoutResult{
		RazorpayOrderID: rzpOrder.ID,
		Amount:          rzpOrder.Amount,
		Currency:        currency,
		ItemsTotal:      itemsTotal,
		Fees:            breakdown,
		Orders:          orders,
	}, nil
}

// resolveCart resolves every line against the catalog, snapshots price
// and name, and groups lines by canteen preserving cart order. The first
// failing line aborts the whole cart.
func (s *CheckoutService) resolveCart(ctx context.Context, lines []CartLine) (decimal.Decimal, map[uuid.UUID]*canteenGroup, []uuid.UUID, error) {
	itemsTotal := decimal.Zero
	groups := make(map[uuid.UUID]*canteenGroup)
	var order []uuid.UUID

	for i, line := range lines {
		if line.Quantity <= 0 {
			return decimal.Zero, nil, nil, fmt.Errorf("lines[%d]: %w", i, ErrInvalidQuantity)
		}
		itemID, err := uuid.Parse(line.MenuItemID)
		if err != nil {
			return decimal.Zero, nil, nil, fmt.Errorf("lines[%d]: %w", i, ErrInvalidItemID)
		}

		item, err := s.store.GetMenuItem(ctx, itemID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return decimal.Zero, nil, nil, fmt.Errorf("lines[%d]: %w", i, ErrItemNotFound)
			}
			return decimal.Zero, nil, nil, fmt.Errorf("lines[%d]: get menu item: %w", i, err)
		}
		if !item.IsAvailable {
			return decimal.Zero, nil, nil, fmt.Errorf("lines[%d] (%s): %w", i, item.Name, ErrItemUnavailable)
		}

		price := numericToDecimal(item.Price)
		itemsTotal = itemsTotal.Add(price.Mul(decimal.NewFromInt32(line.Quantity)))

		g, ok := groups[item.CanteenID]
		if !ok {
			canteen, err := s.store.GetCanteen(ctx, item.CanteenID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return decimal.Zero, nil, nil, fmt.Errorf("lines[%d]: %w", i, ErrCanteenNotFound)
				}
				return decimal.Zero, nil, nil, fmt.Errorf("lines[%d]: get canteen: %w", i, err)
			}
			if !canteen.IsOpen || !canteen.AcceptingOrders {
				return decimal.Zero, nil, nil, fmt.Errorf("lines[%d] (%s): %w", i, canteen.Name, ErrCanteenClosed)
			}
			g = &canteenGroup{canteen: canteen}
			groups[item.CanteenID] = g
			order = append(order, item.CanteenID)
		}

		g.lines = append(g.lines, database.OrderLine{
			MenuItemID: item.ID,
			Name:       item.Name,
			Price:      price,
			Quantity:   line.Quantity,
			Notes:      line.Notes,
			IsVeg:      item.IsVeg,
		})
	}

	return itemsTotal, groups, order, nil
}

// createCanteenOrder allocates the canteen's next order code and inserts
// the pending order in one transaction.
func (s *CheckoutService) createCanteenOrder(ctx context.Context, req CheckoutRequest, g *canteenGroup, itemsTotal decimal.Decimal, breakdown fees.Breakdown, rzpOrderID string, expiresAt time.Time) (database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	txStore := s.newStore(tx)

	_, code, err := AllocateOrderCode(ctx, txStore, g.canteen.ID)
	if err != nil {
		return database.Order{}, fmt.Errorf("allocate order code: %w", err)
	}

	order, err := txStore.CreateOrder(ctx, database.CreateOrderParams{
		Code:            pgtype.Text{String: code, Valid: true},
		CustomerID:      req.CustomerID,
		CanteenID:       g.canteen.ID,
		Lines:           g.lines,
		ItemsTotal:      decimalToNumeric(itemsTotal),
		GatewayFee:      decimalToNumeric(breakdown.GatewayFeeBase),
		GatewayTax:      decimalToNumeric(breakdown.GatewayTax),
		BackendFee:      decimalToNumeric(breakdown.BackendFee),
		AppFee:          decimalToNumeric(breakdown.AppFee),
		FinalPayable:    decimalToNumeric(breakdown.FinalPayable),
		EatingMode:      req.EatingMode,
		Status:          enum.OrderStatusPendingPayment,
		RazorpayOrderID: rzpOrderID,
		ExpiresAt:       expiresAt,
	})
	if err != nil {
		return database.Order{}, fmt.Errorf("create order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}
	return order, nil
}

// --- Helpers ---

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.String())
	return n
}
