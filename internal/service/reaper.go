package service

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
)

// ReaperStore defines the DB methods needed to reclaim expired orders.
// Satisfied by *database.Queries.
type ReaperStore interface {
	AbandonExpiredOrders(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

// Reaper reclaims unpaid orders whose reservation window elapsed. The
// sweep is a single status-guarded update, so orders a concurrent
// webhook already advanced past PENDING_PAYMENT are never touched.
type Reaper struct {
	store ReaperStore
	now   func() time.Time
}

// NewReaper creates a new Reaper.
func NewReaper(store ReaperStore) *Reaper {
	return &Reaper{store: store, now: time.Now}
}

// Sweep transitions every expired pending order to ABANDONED and returns
// how many were reclaimed. Idempotent: a second sweep finds nothing.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	ids, err := r.store.AbandonExpiredOrders(ctx, r.now())
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Run sweeps on a fixed cadence until the context is cancelled.
// Called as a goroutine from main.
func (r *Reaper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.Sweep(ctx)
			if err != nil {
				log.Printf("ERROR: reaper sweep: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("reaper: abandoned %d expired orders", n)
			}
		}
	}
}
