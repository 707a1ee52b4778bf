package credential

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey string

const principalKey ctxKey = "principal_id"

// NewContext stores the authenticated principal's ID in the context.
func NewContext(ctx context.Context, principalID uuid.UUID) context.Context {
	return context.WithValue(ctx, principalKey, principalID)
}

// FromContext extracts the authenticated principal's ID from the context.
// The second return value is false if no principal is set.
func FromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(principalKey).(uuid.UUID)
	return id, ok
}
