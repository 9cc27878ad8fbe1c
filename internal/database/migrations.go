package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// migrations are applied in order at startup. Statements are idempotent
// so repeated boots against the same database are safe.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS canteens (
		id               UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name             TEXT NOT NULL,
		order_prefix     TEXT NOT NULL CHECK (order_prefix ~ '^[A-Z]{2,4}$'),
		order_counter    INTEGER NOT NULL DEFAULT 0,
		is_open          BOOLEAN NOT NULL DEFAULT TRUE,
		accepting_orders BOOLEAN NOT NULL DEFAULT TRUE,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS users (
		id              UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		canteen_id      UUID REFERENCES canteens(id),
		full_name       TEXT NOT NULL,
		email           TEXT NOT NULL UNIQUE,
		hashed_password TEXT NOT NULL,
		role            TEXT NOT NULL CHECK (role IN ('ADMIN', 'STAFF', 'CUSTOMER')),
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS menu_items (
		id           UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		canteen_id   UUID NOT NULL REFERENCES canteens(id),
		name         TEXT NOT NULL,
		price        NUMERIC(10,2) NOT NULL CHECK (price >= 0),
		is_available BOOLEAN NOT NULL DEFAULT TRUE,
		is_veg       BOOLEAN NOT NULL DEFAULT FALSE,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS orders (
		id                  UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		code                TEXT,
		customer_id         UUID NOT NULL REFERENCES users(id),
		canteen_id          UUID NOT NULL REFERENCES canteens(id),
		lines               JSONB NOT NULL,
		items_total         NUMERIC(10,2) NOT NULL,
		gateway_fee         NUMERIC(10,4) NOT NULL,
		gateway_tax         NUMERIC(10,4) NOT NULL,
		backend_fee         NUMERIC(10,2) NOT NULL,
		app_fee             NUMERIC(10,2) NOT NULL,
		final_payable       NUMERIC(10,2) NOT NULL,
		eating_mode         TEXT NOT NULL CHECK (eating_mode IN ('DINE_IN', 'TAKEAWAY')),
		status              TEXT NOT NULL CHECK (status IN
			('PENDING_PAYMENT', 'PAID', 'READY', 'COMPLETED', 'ABANDONED')),
		razorpay_order_id   TEXT NOT NULL,
		razorpay_payment_id TEXT,
		expires_at          TIMESTAMPTZ NOT NULL,
		paid_at             TIMESTAMPTZ,
		deleted             BOOLEAN NOT NULL DEFAULT FALSE,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (canteen_id, code)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_orders_gateway_ref
		ON orders (razorpay_order_id)`,

	`CREATE INDEX IF NOT EXISTS idx_orders_pending_expiry
		ON orders (expires_at) WHERE status = 'PENDING_PAYMENT'`,

	`CREATE INDEX IF NOT EXISTS idx_orders_customer
		ON orders (customer_id, created_at DESC)`,

	`CREATE INDEX IF NOT EXISTS idx_orders_canteen
		ON orders (canteen_id, created_at DESC)`,
}

// Migrate applies the schema. Called once from main before serving.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
