package admission

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func newTestHandler() *Handler {
	return NewHandler(nil, nil, nil, nil)
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{name: "missing email", body: `{"password":"hunter222"}`, wantStatus: http.StatusUnprocessableEntity},
		{name: "invalid email", body: `{"email":"not-an-email","password":"hunter222"}`, wantStatus: http.StatusUnprocessableEntity},
		{name: "password too short", body: `{"email":"a@example.com","password":"short"}`, wantStatus: http.StatusUnprocessableEntity},
		{name: "invalid JSON", body: `{bad}`, wantStatus: http.StatusBadRequest},
		{name: "empty body", body: ``, wantStatus: http.StatusBadRequest},
	}

	h := newTestHandler()
	router := chi.NewRouter()
	router.Mount("/auth", h.AuthRoutes())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(tt.body))
			r.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, r)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body: %s)", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestLogin_Validation(t *testing.T) {
	h := newTestHandler()
	router := chi.NewRouter()
	router.Mount("/auth", h.AuthRoutes())

	r := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"a@example.com"}`))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, r)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
}

func TestCreateStore_RequiresAuthentication(t *testing.T) {
	h := newTestHandler()
	router := chi.NewRouter()
	router.Mount("/stores", h.StoreRoutes())

	r := httptest.NewRequest(http.MethodPost, "/stores", strings.NewReader(`{"name":"acme-shop"}`))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestGetStore_RequiresAuthenticationBeforeIDParsing(t *testing.T) {
	h := newTestHandler()
	router := chi.NewRouter()
	router.Mount("/stores", h.StoreRoutes())

	r := httptest.NewRequest(http.MethodGet, "/stores/not-a-uuid", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d (missing auth should short-circuit before ID parsing)", w.Code, http.StatusUnauthorized)
	}
}
