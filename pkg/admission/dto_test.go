package admission

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sujalmh/storectl/pkg/registry"
)

func TestToStoreResponseOmitsURLUntilReady(t *testing.T) {
	store := registry.StoreRow{ID: uuid.New(), Domain: "acme.127.0.0.1.nip.io", Status: registry.StorePending}
	resp := toStoreResponse(store)
	if resp.URL != nil {
		t.Errorf("URL = %v, want nil for a pending store", *resp.URL)
	}

	store.Status = registry.StoreReady
	resp = toStoreResponse(store)
	if resp.URL == nil || *resp.URL != "https://acme.127.0.0.1.nip.io" {
		t.Errorf("URL = %v, want https://acme.127.0.0.1.nip.io", resp.URL)
	}
}

func TestToStoreResponseUsesHTTPForLocalDomains(t *testing.T) {
	store := registry.StoreRow{ID: uuid.New(), Domain: "acme.localtest.me", Status: registry.StoreReady}
	resp := toStoreResponse(store)
	if resp.URL == nil || *resp.URL != "http://acme.localtest.me" {
		t.Errorf("URL = %v, want http://acme.localtest.me", resp.URL)
	}
}

func TestToStoreDetailsResponseSurfacesAdminCredentialsOnceReady(t *testing.T) {
	username, password := "admin", "s3cret"
	now := time.Unix(0, 0)
	store := registry.StoreRow{
		ID:            uuid.New(),
		Domain:        "acme.127.0.0.1.nip.io",
		Status:        registry.StoreReady,
		AdminUsername: &username,
		AdminPassword: &password,
		ReadyAt:       &now,
	}

	resp := toStoreDetailsResponse(store)
	if resp.AdminURL == nil || *resp.AdminURL != "https://acme.127.0.0.1.nip.io/wp-admin" {
		t.Errorf("AdminURL = %v, want https://acme.127.0.0.1.nip.io/wp-admin", resp.AdminURL)
	}
	if resp.AdminUsername == nil || *resp.AdminUsername != username {
		t.Errorf("AdminUsername = %v, want %s", resp.AdminUsername, username)
	}
	if resp.AdminPassword == nil || *resp.AdminPassword != password {
		t.Errorf("AdminPassword = %v, want %s", resp.AdminPassword, password)
	}
}

func TestToStoreDetailsResponseHidesAdminCredentialsBeforeReady(t *testing.T) {
	username := "admin"
	store := registry.StoreRow{
		ID:            uuid.New(),
		Domain:        "acme.127.0.0.1.nip.io",
		Status:        registry.StoreProvisioning,
		AdminUsername: &username,
	}

	resp := toStoreDetailsResponse(store)
	if resp.AdminURL != nil || resp.AdminUsername != nil || resp.AdminPassword != nil {
		t.Error("admin details should be hidden before the store is ready")
	}
}
