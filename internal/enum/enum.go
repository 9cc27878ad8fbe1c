package enum

// ── Order lifecycle (CHECK constrained in DB) ──
//
// PENDING_PAYMENT -> PAID -> READY -> COMPLETED, with
// PENDING_PAYMENT -> ABANDONED as the only other edge (reaper).
// No transition re-enters PENDING_PAYMENT.

const (
	OrderStatusPendingPayment = "PENDING_PAYMENT"
	OrderStatusPaid           = "PAID"
	OrderStatusReady          = "READY"
	OrderStatusCompleted      = "COMPLETED"
	OrderStatusAbandoned      = "ABANDONED"
)

const (
	EatingModeDineIn   = "DINE_IN"
	EatingModeTakeaway = "TAKEAWAY"
)

const (
	UserRoleAdmin    = "ADMIN"
	UserRoleStaff    = "STAFF"
	UserRoleCustomer = "CUSTOMER"
)

// Razorpay webhook event types. Only the capture event mutates state;
// everything else is acknowledged as a no-op.
const (
	EventPaymentCaptured = "payment.captured"
)

// ── WebSocket event types (no DB constraint) ──

const (
	WSEventOrderPaid   = "order.paid"
	WSEventOrderStatus = "order.status"
)
