package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX abstracts over *pgxpool.Pool and pgx.Tx so a Store can run either
// against the shared pool or inside a caller-managed transaction. The
// provisioning worker relies on this to satisfy the two-transaction
// error-write rule: a poisoned transaction after a mid-provision failure is
// rolled back, and the ERROR status is written through a fresh Store bound
// to a new transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const principalColumns = `id, email, hashed_password, store_quota, created_at, updated_at`

const storeColumns = `id, user_id, name, domain, namespace, status, helm_release_name, admin_username, admin_password, error_message, created_at, updated_at, ready_at`

// Store provides database operations for principals and stores.
type Store struct {
	db DBTX
}

// NewStore creates a registry Store backed by the given DBTX, which may be
// the shared pool or a transaction.
func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

func scanPrincipal(row pgx.Row) (Principal, error) {
	var p Principal
	err := row.Scan(&p.ID, &p.Email, &p.PasswordHash, &p.StoreQuota, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func scanStore(row pgx.Row) (StoreRow, error) {
	var s StoreRow
	err := row.Scan(
		&s.ID, &s.UserID, &s.Name, &s.Domain, &s.Namespace, &s.Status, &s.HelmReleaseName,
		&s.AdminUsername, &s.AdminPassword, &s.ErrorMessage, &s.CreatedAt, &s.UpdatedAt, &s.ReadyAt,
	)
	return s, err
}

// CreatePrincipalParams holds parameters for registering a principal.
type CreatePrincipalParams struct {
	Email        string
	PasswordHash string
	StoreQuota   int
}

// CreatePrincipal inserts a new principal and returns the created row.
func (s *Store) CreatePrincipal(ctx context.Context, p CreatePrincipalParams) (Principal, error) {
	query := `INSERT INTO users (email, hashed_password, store_quota)
	VALUES ($1, $2, $3)
	RETURNING ` + principalColumns

	row := s.db.QueryRow(ctx, query, p.Email, p.PasswordHash, p.StoreQuota)
	principal, err := scanPrincipal(row)
	if err != nil {
		return Principal{}, fmt.Errorf("creating principal: %w", err)
	}
	return principal, nil
}

// GetPrincipalByEmail looks up a principal by email. Returns pgx.ErrNoRows
// if no such principal exists.
func (s *Store) GetPrincipalByEmail(ctx context.Context, email string) (Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM users WHERE email = $1`
	row := s.db.QueryRow(ctx, query, email)
	return scanPrincipal(row)
}

// GetPrincipalByID looks up a principal by ID. Returns pgx.ErrNoRows if no
// such principal exists.
func (s *Store) GetPrincipalByID(ctx context.Context, id uuid.UUID) (Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM users WHERE id = $1`
	row := s.db.QueryRow(ctx, query, id)
	return scanPrincipal(row)
}

// CountStoresByUser returns the number of non-deleted stores owned by a
// principal, used by the quota gate (C3).
func (s *Store) CountStoresByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM stores WHERE user_id = $1 AND status <> $2`
	var count int
	if err := s.db.QueryRow(ctx, query, userID, StoreDeleted).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting stores: %w", err)
	}
	return count, nil
}

// CreateStoreParams holds parameters for creating a store in the pending
// state, before provisioning has begun.
type CreateStoreParams struct {
	UserID          uuid.UUID
	Name            string
	Domain          string
	Namespace       string
	HelmReleaseName string
}

// CreateStore inserts a new store row with status pending.
func (s *Store) CreateStore(ctx context.Context, p CreateStoreParams) (StoreRow, error) {
	query := `INSERT INTO stores (user_id, name, domain, namespace, status, helm_release_name)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING ` + storeColumns

	row := s.db.QueryRow(ctx, query, p.UserID, p.Name, p.Domain, p.Namespace, StorePending, p.HelmReleaseName)
	store, err := scanStore(row)
	if err != nil {
		return StoreRow{}, fmt.Errorf("creating store: %w", err)
	}
	return store, nil
}

// GetStore looks up a store by ID. Returns pgx.ErrNoRows if no such store
// exists.
func (s *Store) GetStore(ctx context.Context, id uuid.UUID) (StoreRow, error) {
	query := `SELECT ` + storeColumns + ` FROM stores WHERE id = $1`
	row := s.db.QueryRow(ctx, query, id)
	return scanStore(row)
}

// GetStoreByDomain looks up a store by its domain, used to enforce domain
// uniqueness before provisioning starts.
func (s *Store) GetStoreByDomain(ctx context.Context, domain string) (StoreRow, error) {
	query := `SELECT ` + storeColumns + ` FROM stores WHERE domain = $1`
	row := s.db.QueryRow(ctx, query, domain)
	return scanStore(row)
}

// ListStoresByUser returns all stores owned by a principal, most recent
// first.
func (s *Store) ListStoresByUser(ctx context.Context, userID uuid.UUID) ([]StoreRow, error) {
	query := `SELECT ` + storeColumns + ` FROM stores WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing stores: %w", err)
	}
	defer rows.Close()

	var items []StoreRow
	for rows.Next() {
		st, err := scanStore(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning store row: %w", err)
		}
		items = append(items, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating store rows: %w", err)
	}
	return items, nil
}

// UpdateStoreStatus transitions a store to a new status.
func (s *Store) UpdateStoreStatus(ctx context.Context, id uuid.UUID, status string) error {
	query := `UPDATE stores SET status = $2, updated_at = now() WHERE id = $1`
	return s.exec1(ctx, query, id, status)
}

// MarkStoreReady transitions a store to ready, recording admin credentials
// and the ready timestamp.
func (s *Store) MarkStoreReady(ctx context.Context, id uuid.UUID, adminUsername, adminPassword string) error {
	query := `UPDATE stores
	SET status = $2, admin_username = $3, admin_password = $4, error_message = NULL, ready_at = $5, updated_at = now()
	WHERE id = $1`
	return s.exec1(ctx, query, id, StoreReady, adminUsername, adminPassword, time.Now())
}

// MarkStoreError transitions a store to error, recording the failure
// message. Intended to be called through a fresh Store/transaction per the
// two-transaction error-write rule, since the transaction that attempted
// the provisioning step may already be poisoned.
func (s *Store) MarkStoreError(ctx context.Context, id uuid.UUID, message string) error {
	query := `UPDATE stores SET status = $2, error_message = $3, updated_at = now() WHERE id = $1`
	return s.exec1(ctx, query, id, StoreError, message)
}

// DeleteStore removes a store row. Provisioning infrastructure teardown
// happens separately; this is the registry-side record deletion once
// teardown succeeds.
func (s *Store) DeleteStore(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM stores WHERE id = $1`
	return s.exec1(ctx, query, id)
}

func (s *Store) exec1(ctx context.Context, query string, args ...any) error {
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
