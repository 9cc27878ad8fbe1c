package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/noq-app/api/internal/database"
)

// maxCounterRetries bounds the optimistic retry loop on the canteen
// order counter. Conflicts beyond this surface as ErrCounterContention.
const maxCounterRetries = 3

var (
	ErrCanteenNotFound   = errors.New("canteen not found")
	ErrNoOrderPrefix     = errors.New("canteen order prefix not set")
	ErrCounterContention = errors.New("order counter contention, retry")
)

// AllocatorStore defines the DB methods needed to allocate order codes.
// Satisfied by *database.Queries bound to the caller's transaction.
type AllocatorStore interface {
	GetCanteen(ctx context.Context, id uuid.UUID) (database.Canteen, error)
	IncrementOrderCounter(ctx context.Context, arg database.IncrementOrderCounterParams) (int32, error)
}

// AllocateOrderCode issues the next sequential order code for a canteen:
// the counter value and its formatted form, e.g. counter 7 with prefix
// "CC" -> "CC-0007".
//
// It must run inside the transaction that also inserts the order, so the
// increment and the order commit or roll back together. The increment is
// a compare-and-swap on the counter value read in the same statement
// window; losing the race re-reads and retries, so concurrent allocations
// against one canteen yield dense, unique numbers.
func AllocateOrderCode(ctx context.Context, store AllocatorStore, canteenID uuid.UUID) (int32, string, error) {
	for attempt := 0; attempt < maxCounterRetries; attempt++ {
		canteen, err := store.GetCanteen(ctx, canteenID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return 0, "", ErrCanteenNotFound
			}
			return 0, "", fmt.Errorf("get canteen: %w", err)
		}
		if canteen.OrderPrefix == "" {
			return 0, "", ErrNoOrderPrefix
		}

		counter, err := store.IncrementOrderCounter(ctx, database.IncrementOrderCounterParams{
			ID:       canteenID,
			Expected: canteen.OrderCounter,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// Another writer advanced the counter first; re-read.
				continue
			}
			return 0, "", fmt.Errorf("increment order counter: %w", err)
		}

		return counter, fmt.Sprintf("%s-%04d", canteen.OrderPrefix, counter), nil
	}
	return 0, "", ErrCounterContention
}
