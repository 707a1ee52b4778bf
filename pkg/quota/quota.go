// Package quota implements the per-principal store quota gate (C3).
package quota

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Counter reports how many stores a principal currently owns. Satisfied by
// *registry.Store.
type Counter interface {
	CountStoresByUser(ctx context.Context, userID uuid.UUID) (int, error)
}

// ErrQuotaExceeded is returned when a principal has reached their store
// quota.
type ErrQuotaExceeded struct {
	UserID uuid.UUID
	Limit  int
}

func (e *ErrQuotaExceeded) Error() string {
	return fmt.Sprintf("principal %s has reached their store quota of %d", e.UserID, e.Limit)
}

// Check reports whether a principal may create another store, given their
// quota limit. It returns *ErrQuotaExceeded when the limit has been
// reached, never a lower-level error wrapped around a business rule.
func Check(ctx context.Context, counter Counter, userID uuid.UUID, limit int) error {
	count, err := counter.CountStoresByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("counting stores for quota check: %w", err)
	}
	if count >= limit {
		return &ErrQuotaExceeded{UserID: userID, Limit: limit}
	}
	return nil
}
