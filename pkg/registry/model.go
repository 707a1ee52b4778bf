// Package registry implements persistence for principals (users) and
// stores (provisioned tenant storefronts), the control plane's system of
// record for C2.
package registry

import (
	"time"

	"github.com/google/uuid"
)

// Principal is an authenticated account that owns stores.
type Principal struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	StoreQuota   int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Store statuses, mirroring the provisioning state machine's states.
const (
	StorePending      = "pending"
	StoreProvisioning = "provisioning"
	StoreReady        = "ready"
	StoreError        = "error"
	StoreDeleting     = "deleting"
	StoreDeleted      = "deleted"
)

// StoreRow is a provisioned (or provisioning) WooCommerce storefront, as
// stored in the stores table.
type StoreRow struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	Name            string
	Domain          string
	Namespace       string
	Status          string
	HelmReleaseName string
	AdminUsername   *string
	AdminPassword   *string
	ErrorMessage    *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ReadyAt         *time.Time
}

// ToResponse converts a StoreRow into a DTO shape. The generated admin
// password is never included, whatever the store's status.
func (s *StoreRow) ToResponse() Response {
	resp := Response{
		ID:              s.ID,
		Name:            s.Name,
		Domain:          s.Domain,
		Namespace:       s.Namespace,
		Status:          s.Status,
		HelmReleaseName: s.HelmReleaseName,
		AdminUsername:   s.AdminUsername,
		ErrorMessage:    s.ErrorMessage,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
		ReadyAt:         s.ReadyAt,
	}
	return resp
}

// Response is the JSON representation of a Store returned to callers.
// AdminPassword is intentionally omitted; the admission layer returns it in
// the store details response once the store is ready.
type Response struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	Domain          string     `json:"domain"`
	Namespace       string     `json:"namespace"`
	Status          string     `json:"status"`
	HelmReleaseName string     `json:"helm_release_name"`
	AdminUsername   *string    `json:"admin_username,omitempty"`
	ErrorMessage    *string    `json:"error_message,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	ReadyAt         *time.Time `json:"ready_at,omitempty"`
}
