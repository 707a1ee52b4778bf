package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sujalmh/storectl/pkg/credential"
)

func newTestTokens(t *testing.T) *credential.TokenManager {
	t.Helper()
	tm, err := credential.NewTokenManager("0123456789abcdef0123456789abcdef", time.Hour, "HS256")
	if err != nil {
		t.Fatalf("NewTokenManager() error: %v", err)
	}
	return tm
}

func TestMiddlewareAcceptsValidToken(t *testing.T) {
	tokens := newTestTokens(t)
	principalID := uuid.New()
	token, err := tokens.IssueToken(principalID)
	if err != nil {
		t.Fatalf("IssueToken() error: %v", err)
	}

	var seen uuid.UUID
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := credential.FromContext(r.Context())
		if !ok {
			t.Error("principal ID missing from context")
		}
		seen = id
		w.WriteHeader(http.StatusOK)
	})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	Middleware(tokens)(next).ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if seen != principalID {
		t.Errorf("context principal = %s, want %s", seen, principalID)
	}
}

func TestMiddlewareRejectsMissingHeader(t *testing.T) {
	tokens := newTestTokens(t)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("next handler should not be called")
	})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	Middleware(tokens)(next).ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestMiddlewareRejectsInvalidToken(t *testing.T) {
	tokens := newTestTokens(t)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("next handler should not be called")
	})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer garbage")
	w := httptest.NewRecorder()

	Middleware(tokens)(next).ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
