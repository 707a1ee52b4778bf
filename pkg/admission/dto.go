package admission

import (
	"time"

	"github.com/google/uuid"

	"github.com/sujalmh/storectl/pkg/registry"
)

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// TokenResponse is returned by register and login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// CreateStoreRequest is the body of POST /stores. Domain is optional; when
// omitted it is derived from Name using the nip.io-style scheme.
type CreateStoreRequest struct {
	Name   string  `json:"name" validate:"required,min=3,max=63"`
	Domain *string `json:"domain,omitempty"`
}

// StoreResponse is the public JSON shape of a store, with a derived URL
// once the store is ready.
type StoreResponse struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Domain    string     `json:"domain"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	ReadyAt   *time.Time `json:"ready_at,omitempty"`
	URL       *string    `json:"url,omitempty"`
}

// StoreDetailsResponse extends StoreResponse with admin access details,
// populated once the store is ready.
type StoreDetailsResponse struct {
	StoreResponse
	AdminURL      *string `json:"admin_url,omitempty"`
	AdminUsername *string `json:"admin_username,omitempty"`
	AdminPassword *string `json:"admin_password,omitempty"`
}

// HealthStatus reports pod readiness for a store.
type HealthStatus struct {
	Healthy        bool    `json:"healthy"`
	WordpressReady bool    `json:"wordpress_ready"`
	MysqlReady     bool    `json:"mysql_ready"`
	Details        *string `json:"details,omitempty"`
}

func storeScheme(domain string) string {
	for _, suffix := range []string{".localtest.me", ".localhost"} {
		if len(domain) >= len(suffix) && domain[len(domain)-len(suffix):] == suffix {
			return "http"
		}
	}
	return "https"
}

func toStoreResponse(s registry.StoreRow) StoreResponse {
	resp := StoreResponse{
		ID:        s.ID,
		Name:      s.Name,
		Domain:    s.Domain,
		Status:    s.Status,
		CreatedAt: s.CreatedAt,
		ReadyAt:   s.ReadyAt,
	}
	if s.Status == registry.StoreReady {
		url := storeScheme(s.Domain) + "://" + s.Domain
		resp.URL = &url
	}
	return resp
}

func toStoreDetailsResponse(s registry.StoreRow) StoreDetailsResponse {
	resp := StoreDetailsResponse{StoreResponse: toStoreResponse(s)}
	if s.Status == registry.StoreReady {
		adminURL := storeScheme(s.Domain) + "://" + s.Domain + "/wp-admin"
		resp.AdminURL = &adminURL
		resp.AdminUsername = s.AdminUsername
		resp.AdminPassword = s.AdminPassword
	}
	return resp
}
