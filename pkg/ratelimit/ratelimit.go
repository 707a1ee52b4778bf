// Package ratelimit implements the fixed-window per-principal, per-endpoint
// rate limiter (C4), backed by Postgres rather than Redis so the limiter
// shares the registry's transactional guarantees.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Limiter enforces a fixed-window request limit per (user, endpoint) pair.
type Limiter struct {
	pool    *pgxpool.Pool
	window  time.Duration
	maxReqs int
}

// New creates a Limiter with the given window size and per-window request
// ceiling.
func New(pool *pgxpool.Pool, window time.Duration, maxRequests int) *Limiter {
	return &Limiter{pool: pool, window: window, maxReqs: maxRequests}
}

// Result describes the outcome of an Allow check.
type Result struct {
	Allowed    bool
	RetryAfter time.Duration
}

const upsertQuery = `
INSERT INTO rate_limits (user_id, endpoint, window_start, request_count)
VALUES ($1, $2, $3, 1)
ON CONFLICT (user_id, endpoint, window_start)
DO UPDATE SET request_count = rate_limits.request_count + 1
RETURNING request_count`

// Allow records a request against the current window and reports whether
// it should proceed. The window boundary is computed the same way
// regardless of when within the window the request lands, so concurrent
// callers converge on the same window_start and the unique constraint on
// (user_id, endpoint, window_start) serializes the increment.
func (l *Limiter) Allow(ctx context.Context, userID uuid.UUID, endpoint string) (Result, error) {
	now := time.Now().UTC()
	windowStart := windowStart(now, l.window)

	var count int
	err := l.pool.QueryRow(ctx, upsertQuery, userID, endpoint, windowStart).Scan(&count)
	if err != nil {
		return Result{}, fmt.Errorf("recording rate limit window: %w", err)
	}

	if count > l.maxReqs {
		retryAfter := windowStart.Add(l.window).Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return Result{Allowed: false, RetryAfter: retryAfter}, nil
	}

	return Result{Allowed: true, RetryAfter: l.window}, nil
}

// windowStart truncates now down to the start of its fixed window.
func windowStart(now time.Time, window time.Duration) time.Time {
	epoch := now.Unix()
	windowSeconds := int64(window.Seconds())
	windowEpoch := epoch - (epoch % windowSeconds)
	return time.Unix(windowEpoch, 0).UTC()
}
