// Package admission implements the HTTP admission API (C9): registration,
// login, and the store lifecycle endpoints that front the provisioning
// worker and the rest of the control plane.
package admission

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sujalmh/storectl/internal/queue"
	"github.com/sujalmh/storectl/internal/storeerr"
	"github.com/sujalmh/storectl/pkg/credential"
	"github.com/sujalmh/storectl/pkg/k8sdriver"
	"github.com/sujalmh/storectl/pkg/quota"
	"github.com/sujalmh/storectl/pkg/registry"
)

var storeNamePattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// Config carries the values the service needs to derive domains and
// namespaces for new stores, mirroring the original implementation's
// settings-driven nip.io routing scheme.
type Config struct {
	PublicIP          string
	BaseDomain        string
	DefaultStoreQuota int
}

// Service implements the admission API's business logic against the
// registry, quota gate, and task queue.
type Service struct {
	pool   *pgxpool.Pool
	tokens *credential.TokenManager
	queue  *queue.Queue
	k8s    *k8sdriver.Driver
	cfg    Config
	logger *slog.Logger
}

// NewService creates a Service.
func NewService(pool *pgxpool.Pool, tokens *credential.TokenManager, q *queue.Queue, k8s *k8sdriver.Driver, cfg Config, logger *slog.Logger) *Service {
	return &Service{pool: pool, tokens: tokens, queue: q, k8s: k8s, cfg: cfg, logger: logger}
}

// Register creates a new principal and issues a session token for it.
func (s *Service) Register(ctx context.Context, email, password string) (string, error) {
	reg := registry.NewStore(s.pool)

	if _, err := reg.GetPrincipalByEmail(ctx, email); err == nil {
		return "", storeerr.New(storeerr.KindConflict, "email already registered")
	} else if err != pgx.ErrNoRows {
		return "", fmt.Errorf("checking existing principal: %w", err)
	}

	hash, err := credential.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}

	principal, err := reg.CreatePrincipal(ctx, registry.CreatePrincipalParams{
		Email:        email,
		PasswordHash: hash,
		StoreQuota:   s.cfg.DefaultStoreQuota,
	})
	if err != nil {
		return "", fmt.Errorf("creating principal: %w", err)
	}

	token, err := s.tokens.IssueToken(principal.ID)
	if err != nil {
		return "", fmt.Errorf("issuing token: %w", err)
	}
	return token, nil
}

// Login verifies credentials and issues a session token.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	reg := registry.NewStore(s.pool)

	principal, err := reg.GetPrincipalByEmail(ctx, email)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", storeerr.New(storeerr.KindUnauthorized, "invalid credentials")
		}
		return "", fmt.Errorf("looking up principal: %w", err)
	}

	if !credential.VerifyPassword(password, principal.PasswordHash) {
		return "", storeerr.New(storeerr.KindUnauthorized, "invalid credentials")
	}

	token, err := s.tokens.IssueToken(principal.ID)
	if err != nil {
		return "", fmt.Errorf("issuing token: %w", err)
	}
	return token, nil
}

// CreateStore validates the requested name/domain, enforces the quota gate
// and domain uniqueness, creates the store row in the pending state, and
// enqueues a provisioning task.
func (s *Service) CreateStore(ctx context.Context, userID uuid.UUID, req CreateStoreRequest) (registry.StoreRow, error) {
	if !storeNamePattern.MatchString(req.Name) {
		return registry.StoreRow{}, storeerr.New(storeerr.KindBadRequest, "name must contain only lowercase letters, digits, and hyphens")
	}

	domain := fmt.Sprintf("%s.%s.%s", req.Name, s.cfg.PublicIP, s.cfg.BaseDomain)
	if req.Domain != nil && *req.Domain != domain {
		return registry.StoreRow{}, storeerr.New(storeerr.KindBadRequest, fmt.Sprintf("domain must be %s for nip.io routing", domain))
	}

	reg := registry.NewStore(s.pool)

	principal, err := reg.GetPrincipalByID(ctx, userID)
	if err != nil {
		return registry.StoreRow{}, fmt.Errorf("loading principal: %w", err)
	}

	if err := quota.Check(ctx, reg, userID, principal.StoreQuota); err != nil {
		return registry.StoreRow{}, storeerr.Wrap(storeerr.KindTooManyReqs, "store quota exceeded", err)
	}

	if _, err := reg.GetStoreByDomain(ctx, domain); err == nil {
		return registry.StoreRow{}, storeerr.New(storeerr.KindConflict, "domain already in use")
	} else if err != pgx.ErrNoRows {
		return registry.StoreRow{}, fmt.Errorf("checking domain uniqueness: %w", err)
	}

	storeID := uuid.New()
	store, err := reg.CreateStore(ctx, registry.CreateStoreParams{
		UserID:          userID,
		Name:            req.Name,
		Domain:          domain,
		Namespace:       "store-" + storeID.String(),
		HelmReleaseName: "store-" + storeID.String(),
	})
	if err != nil {
		return registry.StoreRow{}, fmt.Errorf("creating store: %w", err)
	}

	if err := s.queue.Enqueue(ctx, "provision_store", store.ID); err != nil {
		return registry.StoreRow{}, fmt.Errorf("enqueueing provisioning task: %w", err)
	}

	return store, nil
}

// ListStores returns all stores owned by a principal.
func (s *Service) ListStores(ctx context.Context, userID uuid.UUID) ([]registry.StoreRow, error) {
	reg := registry.NewStore(s.pool)
	return reg.ListStoresByUser(ctx, userID)
}

// GetOwnedStore loads a store and verifies the caller owns it, returning a
// KindNotFound error if the store doesn't exist at all and KindForbidden
// if it exists but belongs to someone else — the same not-found-vs-forbidden
// split the original implementation used. The split tells a caller whether
// a store ID exists.
func (s *Service) GetOwnedStore(ctx context.Context, userID, storeID uuid.UUID) (registry.StoreRow, error) {
	reg := registry.NewStore(s.pool)

	store, err := reg.GetStore(ctx, storeID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return registry.StoreRow{}, storeerr.New(storeerr.KindNotFound, "store not found")
		}
		return registry.StoreRow{}, fmt.Errorf("loading store: %w", err)
	}
	if store.UserID != userID {
		return registry.StoreRow{}, storeerr.New(storeerr.KindForbidden, "forbidden")
	}
	return store, nil
}

// DeleteStore marks a store as deleting and enqueues a teardown task.
func (s *Service) DeleteStore(ctx context.Context, userID, storeID uuid.UUID) error {
	store, err := s.GetOwnedStore(ctx, userID, storeID)
	if err != nil {
		return err
	}

	reg := registry.NewStore(s.pool)
	if err := reg.UpdateStoreStatus(ctx, store.ID, registry.StoreDeleting); err != nil {
		return fmt.Errorf("marking store deleting: %w", err)
	}

	if err := s.queue.Enqueue(ctx, "delete_store", store.ID); err != nil {
		return fmt.Errorf("enqueueing delete task: %w", err)
	}
	return nil
}

// StoreHealth reports pod readiness for an owned store. The store's status
// is not checked; a store whose pods are missing or not ready is reported
// unhealthy.
func (s *Service) StoreHealth(ctx context.Context, userID, storeID uuid.UUID) (HealthStatus, error) {
	store, err := s.GetOwnedStore(ctx, userID, storeID)
	if err != nil {
		return HealthStatus{}, err
	}

	wordpress, err := s.k8s.PodStatus(ctx, store.Namespace, "app=wordpress")
	if err != nil {
		return HealthStatus{}, fmt.Errorf("checking wordpress pod status: %w", err)
	}
	mysql, err := s.k8s.PodStatus(ctx, store.Namespace, "app=mysql")
	if err != nil {
		return HealthStatus{}, fmt.Errorf("checking mysql pod status: %w", err)
	}

	wordpressReady := len(wordpress) > 0 && allPodsReady(wordpress)
	mysqlReady := len(mysql) > 0 && allPodsReady(mysql)
	healthy := wordpressReady && mysqlReady

	status := HealthStatus{
		Healthy:        healthy,
		WordpressReady: wordpressReady,
		MysqlReady:     mysqlReady,
	}
	if !healthy {
		detail := "one or more pods not ready"
		status.Details = &detail
	}
	return status, nil
}

func allPodsReady(pods []k8sdriver.PodReadiness) bool {
	for _, p := range pods {
		if !p.Ready {
			return false
		}
	}
	return true
}
