package credential

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestIssueAndValidateToken(t *testing.T) {
	tm, err := NewTokenManager("0123456789abcdef0123456789abcdef", time.Hour, "HS256")
	if err != nil {
		t.Fatalf("NewTokenManager() error: %v", err)
	}

	id := uuid.New()
	token, err := tm.IssueToken(id)
	if err != nil {
		t.Fatalf("IssueToken() error: %v", err)
	}

	got, err := tm.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error: %v", err)
	}

	if got != id {
		t.Errorf("ValidateToken() = %s, want %s", got, id)
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	tm, err := NewTokenManager("0123456789abcdef0123456789abcdef", -time.Minute, "HS256")
	if err != nil {
		t.Fatalf("NewTokenManager() error: %v", err)
	}

	token, err := tm.IssueToken(uuid.New())
	if err != nil {
		t.Fatalf("IssueToken() error: %v", err)
	}

	if _, err := tm.ValidateToken(token); err == nil {
		t.Error("ValidateToken() on expired token = nil error, want error")
	}
}

func TestValidateTokenRejectsTampered(t *testing.T) {
	tm, err := NewTokenManager("0123456789abcdef0123456789abcdef", time.Hour, "HS256")
	if err != nil {
		t.Fatalf("NewTokenManager() error: %v", err)
	}

	other, err := NewTokenManager("fedcba9876543210fedcba9876543210", time.Hour, "HS256")
	if err != nil {
		t.Fatalf("NewTokenManager() error: %v", err)
	}

	token, err := other.IssueToken(uuid.New())
	if err != nil {
		t.Fatalf("IssueToken() error: %v", err)
	}

	if _, err := tm.ValidateToken(token); err == nil {
		t.Error("ValidateToken() with wrong key = nil error, want error")
	}
}

func TestNewTokenManagerRejectsShortSecret(t *testing.T) {
	if _, err := NewTokenManager("short", time.Hour, "HS256"); err == nil {
		t.Error("NewTokenManager() with short secret = nil error, want error")
	}
}
