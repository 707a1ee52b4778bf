package quota

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

type fakeCounter struct {
	count int
	err   error
}

func (f fakeCounter) CountStoresByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	return f.count, f.err
}

func TestCheckAllowsUnderQuota(t *testing.T) {
	userID := uuid.New()
	if err := Check(context.Background(), fakeCounter{count: 2}, userID, 5); err != nil {
		t.Errorf("Check() = %v, want nil", err)
	}
}

func TestCheckRejectsAtQuota(t *testing.T) {
	userID := uuid.New()
	err := Check(context.Background(), fakeCounter{count: 5}, userID, 5)
	if err == nil {
		t.Fatal("Check() = nil, want ErrQuotaExceeded")
	}
	var quotaErr *ErrQuotaExceeded
	if !errors.As(err, &quotaErr) {
		t.Errorf("Check() error type = %T, want *ErrQuotaExceeded", err)
	}
}

func TestCheckPropagatesCounterError(t *testing.T) {
	userID := uuid.New()
	boom := errors.New("connection refused")
	err := Check(context.Background(), fakeCounter{err: boom}, userID, 5)
	if err == nil || !errors.Is(err, boom) {
		t.Errorf("Check() = %v, want wrapped %v", err, boom)
	}
}
